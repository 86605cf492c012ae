package logging

type discard struct{}

func (d discard) WithField(string, interface{}) Interface { return d }
func (d discard) WithError(error) Interface               { return d }
func (d discard) Debug(string)                            {}
func (d discard) Info(string)                             {}
func (d discard) Warn(string)                             {}
func (d discard) Error(string)                            {}
func (d discard) Fatal(string)                            {}
func (d discard) Debugf(string, ...interface{})           {}
func (d discard) Infof(string, ...interface{})            {}
func (d discard) Warnf(string, ...interface{})            {}
func (d discard) Errorf(string, ...interface{})           {}
func (d discard) Fatalf(string, ...interface{})           {}

// Discard returns a logger that drops every message.
func Discard() Interface {
	return discard{}
}
