package main

import (
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var credsCmd = &cobra.Command{
	Use:   "creds",
	Short: "Inspect or preset the stored Wi-Fi credentials",
}

var showPassword bool

type credsView struct {
	SSID     string `yaml:"ssid"`
	Password string `yaml:"password,omitempty"`
	Checksum uint16 `yaml:"checksum"`
	Valid    bool   `yaml:"valid"`
}

var credsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored credentials",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		rec, err := store.Load()
		if err != nil {
			return err
		}
		v := credsView{SSID: rec.SSID, Checksum: rec.Checksum, Valid: rec.Valid()}
		if showPassword {
			v.Password = rec.Password
		}
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		return enc.Encode(v)
	},
}

var credsSetCmd = &cobra.Command{
	Use:   "set <ssid> [password]",
	Short: "Store credentials as if they were submitted to the form",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		pw := ""
		if len(args) == 2 {
			pw = args[1]
		}
		if err = store.Save(args[0], pw); err != nil {
			return err
		}
		log.Info("credentials stored", "ssid", args[0], "file", cfg.FlashPath)
		return nil
	},
}

func init() {
	credsShowCmd.Flags().BoolVar(&showPassword, "password", false, "include the password")
	credsCmd.AddCommand(credsShowCmd, credsSetCmd)
}
