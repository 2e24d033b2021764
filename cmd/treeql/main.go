package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/treeql/treeql/serv"
	"github.com/treeql/treeql/internal/util"
)

// These variables are set using -ldflags
var (
	version string
	commit  string
	date    string
)

var log *zap.SugaredLogger

func main() {
	log = util.NewLogger(false).Sugar()

	cobra.EnableCommandSorting = false
	rootCmd := &cobra.Command{
		Use:   "treeql",
		Short: buildDetails(),
	}

	rootCmd.AddCommand(servCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("%s", err)
	}
}

// servCmd is the cobra CLI command for the serve subcommand
func servCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"serv"},
		Short:   "Run the TreeQL service",
		Run: func(cmd *cobra.Command, args []string) {
			serv.SetVersion(version)

			conf, err := serv.ReadInConfig()
			if err != nil {
				log.Fatal(err)
			}
			if conf.DB.ConnString == "" {
				log.Fatal("database.connection_string is required")
			}

			s, err := serv.NewService(conf)
			if err != nil {
				log.Fatalf("failed to start: %s", err)
			}
			if err := s.Start(); err != nil {
				log.Fatalf("%s", err)
			}
		},
	}
}

// versionCmd prints the build details
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(buildDetails())
		},
	}
}

func buildDetails() string {
	v := version
	if v == "" {
		v = "unknown"
	}
	out := fmt.Sprintf("TreeQL %s", v)
	if commit != "" {
		out += fmt.Sprintf(" (%s)", commit)
	}
	if date != "" {
		out += fmt.Sprintf(" built %s", date)
	}
	return out
}
