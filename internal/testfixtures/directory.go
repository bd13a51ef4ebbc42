package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/example/campus-booking/internal/application"
)

// DirectoryFactory builds directories wired with a shared controllable clock.
type DirectoryFactory struct {
	Clock  *Clock
	Logger *slog.Logger
}

// DirectoryFactoryOption configures a DirectoryFactory instance.
type DirectoryFactoryOption func(*DirectoryFactory)

// NewDirectoryFactory constructs a factory with a reference clock and a
// logger that discards output.
func NewDirectoryFactory(opts ...DirectoryFactoryOption) *DirectoryFactory {
	factory := &DirectoryFactory{}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(ReferenceTime())
	}
	if factory.Logger == nil {
		factory.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) DirectoryFactoryOption {
	return func(factory *DirectoryFactory) {
		factory.Clock = clock
	}
}

// WithLogger overrides the logger handed to directories.
func WithLogger(logger *slog.Logger) DirectoryFactoryOption {
	return func(factory *DirectoryFactory) {
		factory.Logger = logger
	}
}

// NewDirectory returns an empty directory.
func (f *DirectoryFactory) NewDirectory() *application.Directory {
	return application.NewDirectoryWithLogger(f.Clock.NowFunc(), f.Logger)
}

// NewSeededDirectory returns a directory holding the default catalog and accounts.
func (f *DirectoryFactory) NewSeededDirectory(tb testing.TB) *application.Directory {
	tb.Helper()

	d := f.NewDirectory()
	if err := d.SeedDefaults(context.Background()); err != nil {
		tb.Fatalf("seed defaults: %v", err)
	}
	return d
}
