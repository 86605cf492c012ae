package configutils

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// ImportKey is the config value listing files to merge underneath the
// current one.
var ImportKey = "imports"

// ResolveAndMergeFile reads filePath from fs, resolves its imports and merges
// everything into v. Imported files are merged first so the importing file
// wins on conflicting keys.
func ResolveAndMergeFile(fs afero.Fs, v *viper.Viper, filePath string) error {
	if _, err := fs.Stat(filePath); err != nil {
		return err
	}

	ext, err := configType(filePath)
	if err != nil {
		return err
	}
	v.SetConfigType(ext)
	v.SetConfigFile(filePath)

	order := []string{}
	visited := map[string]struct{}{filepath.Clean(filePath): {}}
	if err := resolveImports(fs, filePath, &order, visited); err != nil {
		return fmt.Errorf("could not resolve configuration imports: %w", err)
	}

	order = append(order, filePath)
	for _, path := range order {
		if err := mergeConfigFile(fs, v, path); err != nil {
			return fmt.Errorf("merging config %s: %w", path, err)
		}
	}
	return nil
}

func configType(filePath string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	if ext == "" {
		return "", errors.New("configuration file has no extension")
	}
	for _, e := range viper.SupportedExts {
		if ext[1:] == e {
			return e, nil
		}
	}
	return "", fmt.Errorf("unsupported configuration file extension: %s", ext)
}

// resolveImports walks the import graph depth first. Files are appended in
// post-order so children precede their parents; visited guards cycles.
func resolveImports(fs afero.Fs, filePath string, order *[]string, visited map[string]struct{}) error {
	child := viper.New()
	if err := mergeConfigFile(fs, child, filePath); err != nil {
		return err
	}

	for _, imp := range child.GetStringSlice(ImportKey) {
		if imp == "" {
			continue
		}

		path := filepath.Clean(imp)
		if !filepath.IsAbs(imp) {
			path = filepath.Join(filepath.Dir(filePath), imp)
		}
		if _, err := fs.Stat(path); err != nil {
			return err
		}
		if _, ok := visited[path]; ok {
			continue
		}
		visited[path] = struct{}{}

		if err := resolveImports(fs, path, order, visited); err != nil {
			return err
		}
		*order = append(*order, path)
	}
	return nil
}

func mergeConfigFile(fs afero.Fs, v *viper.Viper, filePath string) error {
	ext, err := configType(filePath)
	if err != nil {
		return err
	}
	r, err := fs.Open(filePath)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	v.SetConfigType(ext)
	return v.MergeConfig(r)
}

// BindEnvsRecursive binds every mapstructure key of the struct pointed to by
// iface so that Unmarshal picks up environment overrides for keys that are
// absent from the config file.
func BindEnvsRecursive(v *viper.Viper, iface interface{}, path string) error {
	val := reflect.ValueOf(iface).Elem()
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		fieldType := typ.Field(i)
		tag := strings.Split(fieldType.Tag.Get("mapstructure"), ",")[0]
		if tag == "" || tag == "-" {
			continue
		}

		fullPath := tag
		if path != "" {
			fullPath = path + "." + tag
		}

		field := val.Field(i)
		if field.Kind() == reflect.Ptr {
			if field.IsNil() && field.Type().Elem().Kind() == reflect.Struct {
				field.Set(reflect.New(field.Type().Elem()))
			}
			field = field.Elem()
		}

		if field.Kind() == reflect.Struct {
			if err := BindEnvsRecursive(v, field.Addr().Interface(), fullPath); err != nil {
				return err
			}
			continue
		}

		if err := v.BindEnv(fullPath); err != nil {
			return fmt.Errorf("failed to bind environment variable: %w", err)
		}
	}
	return nil
}

// SetDefaults registers defaults under prefix. Keys already present in the
// merged configuration keep their values.
func SetDefaults(v *viper.Viper, prefix string, defaults map[string]interface{}) {
	for key, value := range defaults {
		if prefix != "" {
			key = prefix + "." + key
		}
		v.SetDefault(key, value)
	}
}
