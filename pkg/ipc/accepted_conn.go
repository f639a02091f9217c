package ipc

import (
	"bufio"
	"net"
	"strings"

	"github.com/BitPonyLLC/canvaspipe/pkg/util"

	"github.com/mattn/go-shellwords"
)

type acceptedConn struct {
	conn net.Conn
}

func (ac *acceptedConn) processCommand(parent *IPCServer) {
	parent.conns.Store(ac, ac)
	defer func() {
		parent.conns.Delete(ac)
		ac.conn.Close()
		parent.log.Trace().Msg("client disconnected")
	}()
	defer util.LogRecover()

	parent.log.Trace().Msg("client connected")

	reader := bufio.NewReader(ac.conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		parent.log.Err(err).Msg("unable to read command from client")
		return
	}

	outWriter := &ConnWriter{conn: ac.conn}
	errWriter := &ConnWriter{conn: ac.conn, prefix: ErrPrefix}

	line = strings.TrimSpace(line)
	clog := parent.log.With().Str("cmd", line).Logger()

	args, err := shellwords.Parse(line)
	if err != nil {
		errWriter.Writeln("unable to parse command: %s", line)
		return
	}

	cmd := parent.factory()
	cmd.SetOut(outWriter)
	cmd.SetErr(errWriter)
	cmd.SetArgs(args)
	cmd.SilenceUsage = true

	clog.Debug().Msg("executing")
	err = cmd.ExecuteContext(parent.ctx)
	if err != nil {
		// cobra has already reported it through errWriter
		clog.Err(err).Msg("command failed")
	}

	if outWriter.Err() != nil {
		clog.Err(outWriter.Err()).Msg("output writer failed")
	}

	if errWriter.Err() != nil {
		clog.Err(errWriter.Err()).Msg("error writer failed")
	}
}
