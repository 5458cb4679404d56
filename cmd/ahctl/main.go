// ahctl is the operator CLI for an Arrowhead local cloud: it lists and edits
// the registry's system and service records, manages intra-cloud
// authorization rules, and runs ad-hoc orchestration queries.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cluster1-arrowcolony/arrowhead-go/core"
	"github.com/cluster1-arrowcolony/arrowhead-go/rpc"
)

var version = "dev"

func main() {
	var (
		configPath string
		cfg        *rpc.Config
		log        *zap.Logger
		fw         *rpc.Framework
	)

	root := &cobra.Command{
		Use:           "ahctl",
		Short:         "Arrowhead local cloud administration",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if configPath != "" {
				cfg, err = rpc.LoadConfigFile(configPath)
				if err != nil {
					return err
				}
			} else {
				cfg = rpc.LoadConfig()
			}
			log = rpc.NewLogger(cfg.LogLevel)

			fw, err = rpc.New(cfg, log)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if fw != nil {
				fw.Close()
			}
			if log != nil {
				log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (ARROWHEAD_* env otherwise)")

	root.AddCommand(
		systemsCmd(&fw),
		servicesCmd(&fw),
		authCmd(&fw),
		orchestrateCmd(&fw),
		envCmd(&cfg),
		versionCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ahctl:", err)
		os.Exit(1)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func systemsCmd(fw **rpc.Framework) *cobra.Command {
	cmd := &cobra.Command{Use: "systems", Short: "Manage registered systems"}

	cmd.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "List all registered systems",
		RunE: func(c *cobra.Command, args []string) error {
			systems, err := (*fw).Management().GetSystems(context.Background())
			if err != nil {
				return err
			}
			return printJSON(systems)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <name>",
		Short: "Show one system by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			sys, err := (*fw).Management().GetSystemByName(context.Background(), args[0])
			if err != nil {
				return err
			}
			return printJSON(sys)
		},
	})

	var address string
	var port int
	register := &cobra.Command{
		Use:   "register <name>",
		Short: "Register a system",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			sys, err := (*fw).Management().RegisterSystem(context.Background(), core.SystemRegistration{
				SystemName: args[0],
				Address:    address,
				Port:       port,
			})
			if err != nil {
				return err
			}
			return printJSON(sys)
		},
	}
	register.Flags().StringVar(&address, "address", "localhost", "system address")
	register.Flags().IntVar(&port, "port", 8080, "system port")
	cmd.AddCommand(register)

	cmd.AddCommand(&cobra.Command{
		Use:   "unregister <id>",
		Short: "Delete a system record by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			var id int
			if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
				return fmt.Errorf("invalid system id %q", args[0])
			}
			return (*fw).Management().UnregisterSystem(context.Background(), id)
		},
	})

	return cmd
}

func servicesCmd(fw **rpc.Framework) *cobra.Command {
	cmd := &cobra.Command{Use: "services", Short: "Manage registered services"}

	cmd.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "List all registered services",
		RunE: func(c *cobra.Command, args []string) error {
			services, err := (*fw).Management().GetServices(context.Background())
			if err != nil {
				return err
			}
			return printJSON(services)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "unregister <id>",
		Short: "Delete a service record by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			var id int
			if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
				return fmt.Errorf("invalid service id %q", args[0])
			}
			return (*fw).Management().UnregisterService(context.Background(), id)
		},
	})

	return cmd
}

func authCmd(fw **rpc.Framework) *cobra.Command {
	cmd := &cobra.Command{Use: "auth", Short: "Manage intra-cloud authorization rules"}

	cmd.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "List authorization rules",
		RunE: func(c *cobra.Command, args []string) error {
			rules, err := (*fw).Management().GetAuthorizations(context.Background())
			if err != nil {
				return err
			}
			return printJSON(rules)
		},
	})

	var consumerID int
	var providerIDs, interfaceIDs, serviceIDs []int
	add := &cobra.Command{
		Use:   "add",
		Short: "Grant a consumer access to provider services",
		RunE: func(c *cobra.Command, args []string) error {
			return (*fw).Management().AddAuthorization(context.Background(), core.AddAuthorizationRequest{
				ConsumerID:           consumerID,
				ProviderIDs:          providerIDs,
				InterfaceIDs:         interfaceIDs,
				ServiceDefinitionIDs: serviceIDs,
			})
		},
	}
	add.Flags().IntVar(&consumerID, "consumer", 0, "consumer system ID")
	add.Flags().IntSliceVar(&providerIDs, "providers", nil, "provider system IDs")
	add.Flags().IntSliceVar(&interfaceIDs, "interfaces", nil, "interface IDs")
	add.Flags().IntSliceVar(&serviceIDs, "services", nil, "service definition IDs")
	add.MarkFlagRequired("consumer")
	add.MarkFlagRequired("providers")
	add.MarkFlagRequired("services")
	cmd.AddCommand(add)

	return cmd
}

func orchestrateCmd(fw **rpc.Framework) *cobra.Command {
	var targetSystem string
	cmd := &cobra.Command{
		Use:   "orchestrate <service-definition>",
		Short: "Resolve a service and dispatch one request to the matched provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			var body []byte
			var err error
			if targetSystem != "" {
				body, err = (*fw).SendRequestTo(context.Background(), args[0], targetSystem, rpc.EmptyParams())
			} else {
				body, err = (*fw).SendRequest(context.Background(), args[0], rpc.EmptyParams())
			}
			if err != nil {
				return err
			}
			fmt.Println(string(body))
			return nil
		},
	}
	cmd.Flags().StringVar(&targetSystem, "system", "", "restrict matching to one provider system")
	return cmd
}

func envCmd(cfg **rpc.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Print the effective configuration",
		RunE: func(c *cobra.Command, args []string) error {
			return printJSON(*cfg)
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the ahctl version",
		Run: func(c *cobra.Command, args []string) {
			fmt.Println("ahctl", version)
		},
	}
}
