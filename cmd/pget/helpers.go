package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pynosaur/pget/internal/builder"
	"github.com/pynosaur/pget/internal/config"
	"github.com/pynosaur/pget/internal/errmsg"
	"github.com/pynosaur/pget/internal/installer"
	"github.com/pynosaur/pget/internal/log"
	"github.com/pynosaur/pget/internal/platform"
	"github.com/pynosaur/pget/internal/registry"
	"github.com/pynosaur/pget/internal/resolver"
	"github.com/pynosaur/pget/internal/store"
)

// env wires the components a command needs against the configured
// install root and registry org.
type env struct {
	cfg     *config.Config
	logger  log.Logger
	reg     registry.Client
	store   *store.Store
	manager *installer.Manager
}

func newEnv() (*env, error) {
	cfg, err := config.Default()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := log.NewText(os.Stderr, verbose)
	log.SetDefault(logger)

	reg := registry.NewGitHub(cfg.Settings.Org, logger)
	st := store.New(cfg, logger)
	mgr := installer.New(
		resolver.New(reg, logger),
		reg,
		builder.New(logger),
		st,
		platform.Current(logger),
		logger,
	)

	return &env{cfg: cfg, logger: logger, reg: reg, store: st, manager: mgr}, nil
}

// splitAppVersion parses the install argument's app@version syntax.
// "latest" means the same as no version.
func splitAppVersion(arg string) (app, version string) {
	app = arg
	if strings.Contains(arg, "@") {
		parts := strings.SplitN(arg, "@", 2)
		app = parts[0]
		version = parts[1]
		if version == "latest" {
			version = ""
		}
	}
	return app, version
}

// fail prints the error with its suggestion and exits with the mapped
// exit code.
func fail(err error) {
	fmt.Fprintln(os.Stderr, errmsg.Format(err))
	exitWithCode(exitCodeFor(err))
}
