package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"

	"github.com/golang/glog"

	"github.com/robotalks/lorabadge/pkg/app"
	"github.com/robotalks/lorabadge/pkg/console"
	fx "github.com/robotalks/lorabadge/pkg/framework"
)

var (
	configFile  string
	withConsole bool
)

func init() {
	app.SetupFlags()
	flag.StringVar(&configFile, "config", configFile, "YAML config file, flags take precedence.")
	flag.BoolVar(&withConsole, "console", withConsole, "Attach the developer console.")
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf := app.Default()
	if err := conf.Overlay(flag.CommandLine, configFile); err != nil {
		glog.Exitf("load config %q: %v", configFile, err)
	}
	dev, err := conf.NewDevice()
	if err != nil {
		glog.Exit(err)
	}
	defer dev.Close()
	if err = dev.Start(); err != nil {
		glog.Errorf("[APP] join request failed: %v", err)
	}

	runner := fx.NewRunner().HandleSignals()
	ctx, cancel := context.WithCancel(runner.Context)
	runner.Context = ctx
	runner.Go(fx.NamedRun("loop", fx.NewLoop().Add(dev)))
	if withConsole {
		con := console.New(dev)
		runner.Go(fx.NamedRun("console", fx.RunFunc(func(ctx context.Context) error {
			return fx.RunWithContextCancel(ctx, con.Shell.Close, func() error {
				defer cancel()
				return con.Run()
			})
		})))
	}
	if err = runner.Wait(); err != nil {
		glog.Error(err)
	}
	cancel()
}
