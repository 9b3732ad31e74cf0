package commands

import (
	"context"
	"fmt"
	"os"

	"seiassist/lib/configutil"
	"seiassist/lib/restyutil"
	"seiassist/lib/scrapers/sei"
	"seiassist/lib/scrapers/sei/core"
	"seiassist/lib/serviceutil"

	"github.com/spf13/cobra"
)

type Config struct {
	BaseUrl   string `json:"base_url"`
	OrgCode   string `json:"org_code"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	LoginPath string `json:"login_path"`
	DebugDir  string `json:"debug_dir"`
}

var configPath *string

var rootCmd = &cobra.Command{
	Use:   "sei-cli",
	Short: "sei-cli lists processes on a SEI portal and generates their PDFs.",
}

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "config.json5", "The portal credentials config to use.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func readConfig() Config {
	cfg, err := configutil.ReadConfig[Config](*configPath)
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	return cfg
}

// newSession logs into the portal and lands on the process control
// panel, the starting point of both commands.
func newSession(ctx context.Context, cfg Config) (client sei.Client, controlHtml, controlUrl string, err error) {
	if cfg.DebugDir != "" {
		core.SetInstrumentOutput(restyutil.NewFilesystemOutput(cfg.DebugDir + "/resty"))
	}

	coreClient, err := core.NewClient(ctx, core.ClientOptions{
		BaseUrl:   cfg.BaseUrl,
		OrgCode:   cfg.OrgCode,
		LoginPath: cfg.LoginPath,
	})
	if err != nil {
		return sei.Client{}, "", "", fmt.Errorf("initializing portal client: %w", err)
	}

	postLogin, err := coreClient.Login(ctx, cfg.Username, cfg.Password)
	if err != nil {
		return sei.Client{}, "", "", fmt.Errorf("logging into portal: %w", err)
	}

	controlHtml, controlUrl, err = coreClient.OpenControlPanel(ctx, postLogin)
	if err != nil {
		return sei.Client{}, "", "", fmt.Errorf("opening process control panel: %w", err)
	}

	client = sei.NewClient(coreClient)
	client.DebugDir = cfg.DebugDir
	return client, controlHtml, controlUrl, nil
}

func openSession(ctx context.Context, cfg Config) (client sei.Client, controlHtml, controlUrl string) {
	client, controlHtml, controlUrl, err := newSession(ctx, cfg)
	if err != nil {
		serviceutil.Fatal("failed to open portal session", err)
	}
	return client, controlHtml, controlUrl
}
