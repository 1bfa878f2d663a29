// Command chatwatch follows one group or private conversation from the
// terminal, the way the web client renders it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "chatwatch",
	Short: "Follow a StudyCircle room live over the realtime socket",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := watchConfig{
			Server:       viper.GetString("server"),
			Token:        viper.GetString("token"),
			UserID:       viper.GetString("user"),
			Group:        viper.GetString("group"),
			Conversation: viper.GetString("conversation"),
		}
		if err := w.validate(); err != nil {
			return err
		}
		return watch(cmd.Context(), w, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.PersistentFlags().String("server", "http://localhost:8080", "Base URL of the realtime service")
	rootCmd.PersistentFlags().StringP("token", "t", "", "Bearer token")
	rootCmd.PersistentFlags().StringP("user", "u", "", "Your user id, announced with user_online")
	rootCmd.PersistentFlags().StringP("group", "g", "", "Group id to follow")
	rootCmd.PersistentFlags().StringP("conversation", "c", "", "Private conversation id to follow")
	for _, f := range []string{"server", "token", "user", "group", "conversation"} {
		_ = viper.BindPFlag(f, rootCmd.PersistentFlags().Lookup(f))
	}
	viper.SetEnvPrefix("CHATWATCH")
	viper.AutomaticEnv()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
