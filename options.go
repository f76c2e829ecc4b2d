package cabfile

import "github.com/spf13/afero"

// Option configures a Cabinet.
type Option func(*Cabinet)

// WithFs sets the filesystem used to open cabinet paths and to create
// extracted files. The default is the operating system filesystem.
func WithFs(fsys afero.Fs) Option {
	return func(c *Cabinet) {
		c.fs = fsys
	}
}

// WithEngine selects a registered decoder engine by name.
// By default the first registered engine is used.
func WithEngine(name string) Option {
	return func(c *Cabinet) {
		c.engine = name
	}
}

// WithTextEncoding sets the IANA name of the encoding of member names
// that are not flagged as UTF-8, e.g. "ibm437" or "windows-1251".
// The default is windows-1252.
func WithTextEncoding(name string) Option {
	return func(c *Cabinet) {
		c.textEncoding = name
	}
}

// WithContinueOnError makes bulk extraction log members that cannot be
// written and continue with the remaining ones.
func WithContinueOnError(enable bool) Option {
	return func(c *Cabinet) {
		c.continueOnError = enable
	}
}
