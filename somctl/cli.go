// Package somctl is the command-line client for a som daemon.
package somctl

import (
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/scanomatic/som/api/client"
)

const defaultAddr = "localhost:9091"

// CLIClient runs one command line.
type CLIClient interface {
	Exec() error
}

type simpleCLIClient struct {
	rootCmd *cobra.Command

	addr     string
	output   string
	logLevel string

	out       io.Writer
	newClient func(addr string) *client.Client
	client    *client.Client
}

func (c *simpleCLIClient) Exec() error {
	return c.rootCmd.Execute()
}

func NewSimpleCLIClient() (CLIClient, error) {
	return newCLIClient(os.Stdout, client.New), nil
}

func newCLIClient(out io.Writer, newClient func(addr string) *client.Client) *simpleCLIClient {
	c := &simpleCLIClient{out: out, newClient: newClient}

	c.rootCmd = &cobra.Command{
		Use:           "somctl",
		Short:         "somctl is a command-line client to the scan-o-matic coordinator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			level, err := log.ParseLevel(c.logLevel)
			if err != nil {
				return err
			}
			log.SetLevel(level)
			return nil
		},
	}
	c.rootCmd.SetOut(out)
	flags := c.rootCmd.PersistentFlags()
	flags.StringVar(&c.addr, "addr", defaultAddr, "som daemon address")
	flags.StringVarP(&c.output, "output", "o", outputText, "output format: text, json or yaml")
	flags.StringVar(&c.logLevel, "log_level", "warn", "error|warn|info|debug")

	c.addCmd(&statusCmd{})
	c.addCmd(&submitCmd{})
	c.addCmd(&stopCmd{})
	c.addCmd(&removeCmd{})
	c.addCmd(&watchCmd{})
	c.rootCmd.AddCommand(c.lockCmd())
	return c
}

func (c *simpleCLIClient) dial() *client.Client {
	if c.client == nil {
		c.client = c.newClient(c.addr)
	}
	return c.client
}

func (c *simpleCLIClient) addCmd(cmd command) {
	c.rootCmd.AddCommand(c.wrap(cmd))
}

func (c *simpleCLIClient) wrap(cmd command) *cobra.Command {
	cobraCmd := cmd.registerFlags()
	cobraCmd.RunE = func(innerCmd *cobra.Command, args []string) error {
		return cmd.run(c, innerCmd, args)
	}
	return cobraCmd
}

type command interface {
	registerFlags() *cobra.Command
	run(cl *simpleCLIClient, cmd *cobra.Command, args []string) error
}
