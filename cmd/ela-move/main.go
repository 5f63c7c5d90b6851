package main

import (
	"context"
	"fmt"
	"os"

	"github.com/CharellKing/ela-move/config"
	"github.com/CharellKing/ela-move/service"
	"github.com/CharellKing/ela-move/utils"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func main() {
	pflag.String("config", "config.yaml", "path to the config file")
	pflag.Bool("show-progress", false, "render a progress bar over the candidate loop")
	pflag.Parse()
	_ = viper.BindPFlags(pflag.CommandLine)

	viper.SetConfigFile(viper.GetString("config"))
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		fmt.Printf("Unable reading config file, %v\n", err)
		os.Exit(1)
	}

	var cfg config.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		fmt.Printf("Unable to decode into struct, %v\n", err)
		os.Exit(1)
	}

	utils.InitLogger(&cfg)

	// Snapshot the config so nothing can mutate it once the run has started.
	var runCfg config.Config
	if err := copier.CopyWithOption(&runCfg, &cfg, copier.Option{DeepCopy: true}); err != nil {
		fmt.Printf("Unable to snapshot config, %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	ctx = utils.SetCtxKeyRunID(ctx, uuid.New().String())
	ctx = utils.SetCtxKeyShowProgress(ctx, viper.GetBool("show-progress"))

	migrator, err := service.NewMigratorWithConfig(ctx, &runCfg)
	if err != nil {
		utils.GetRunLogger(ctx).Errorf("create migrator %+v", err)
		os.Exit(1)
	}

	if runCfg.Status != nil && runCfg.Status.Address != "" {
		statusServer := service.NewStatusServer(runCfg.Status, migrator.Report())
		utils.GoRecovery(ctx, statusServer.Run)
	}

	report, err := migrator.Run()
	if err != nil {
		utils.GetRunLogger(ctx).Errorf("run migrator %+v", err)
		os.Exit(1)
	}

	if report.HasFailures() {
		os.Exit(1)
	}
}
