// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"os"

	"github.com/spf13/viper"
)

// config collects the run-wide settings a flag, an environment variable
// or a config file can supply, following the precedence viper gives for
// free: flag > env > config file > default.
type config struct {
	CoalesceWindow int64
	Compression    int
	Verbose        bool
	CVSRsh         string
	TrunkLabel     string
}

func loadConfig() *config {
	v := viper.New()
	v.SetConfigName("crap-clone")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}

	v.SetDefault("coalesce-window", defaultCoalesceWindow)
	v.SetDefault("compression", 0)
	v.SetDefault("verbose", false)
	v.SetDefault("trunk-label", "cvs_master")

	v.SetEnvPrefix("crap_clone")
	v.BindEnv("cvs-rsh", "CVS_RSH")
	v.AutomaticEnv()

	_ = v.ReadInConfig() // absent config file is not an error

	return &config{
		CoalesceWindow: v.GetInt64("coalesce-window"),
		Compression:    v.GetInt("compression"),
		Verbose:        v.GetBool("verbose"),
		CVSRsh:         v.GetString("cvs-rsh"),
		TrunkLabel:     v.GetString("trunk-label"),
	}
}
