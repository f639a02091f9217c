package cmd

import (
	"strings"

	"github.com/BitPonyLLC/canvaspipe/pkg/ipc"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// sendViaIPC forwards the invoked command, by name, to the daemon.
func sendViaIPC(cmd *cobra.Command) error {
	return sendMsgViaIPC(cmd, cmd.Name())
}

// sendMsgViaIPC forwards name with args quoted for the daemon's parser and
// prints what comes back.
func sendMsgViaIPC(cmd *cobra.Command, name string, args ...string) error {
	words := []string{name}
	for _, arg := range args {
		words = append(words, quote(arg))
	}
	msg := strings.Join(words, " ")

	log.Debug().Int("pid", pidPath.Getpid()).Str("cmd", msg).Msg("sending")

	client := &ipc.Client{
		RespCB: func(line string) bool {
			cmd.Println(line)
			return true
		},
	}

	err := client.Send(viper.GetString("sockpath"), msg)
	if err != nil {
		return fail(8, err)
	}

	return nil
}

func quote(arg string) string {
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}
