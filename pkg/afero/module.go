package afero

import (
	"go.uber.org/fx"
)

var fs = NewOsFs()

// Module provides the OS backed filesystem the agents read and write through.
var Module fx.Option = fx.Provide(
	func() Fs { return fs },
)
