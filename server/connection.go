package server

import (
	"crypto/subtle"
	"io"
	"net"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"shelfdb/config"
	"shelfdb/executor"
	"shelfdb/pgwire"
	"shelfdb/version"
)

// Connection handles the lifecycle of a single client connection:
// startup handshake → authentication → query loop.
type Connection struct {
	conn   net.Conn
	reader *pgwire.Reader
	writer *pgwire.Writer
	cfg    *config.Config
	exec   *executor.Executor
	log    *zap.Logger

	// skipUntilSync is set after an extended-protocol message was
	// rejected; the rest of that batch is discarded up to Sync.
	skipUntilSync bool
}

func newConnection(conn net.Conn, cfg *config.Config, exec *executor.Executor, log *zap.Logger) *Connection {
	return &Connection{
		conn:   conn,
		reader: pgwire.NewReader(conn),
		writer: pgwire.NewWriter(conn),
		cfg:    cfg,
		exec:   exec,
		log:    log,
	}
}

// Handle runs the full connection lifecycle and closes the connection on return.
func (c *Connection) Handle() {
	defer c.conn.Close()

	if err := c.startup(); err != nil {
		c.log.Info("startup failed", zap.Error(err))
		return
	}

	c.log.Info("authenticated")
	c.queryLoop()
	c.log.Info("disconnected")
}

// startup performs the PostgreSQL startup handshake and cleartext password
// authentication. It handles optional SSL negotiation.
func (c *Connection) startup() error {
	for {
		msg, isSSL, err := c.reader.ReadStartup()
		if err != nil {
			return errors.Wrap(err, "read startup")
		}
		if isSSL {
			if err := c.writer.WriteSSLRefuse(); err != nil {
				return errors.Wrap(err, "refuse SSL")
			}
			if err := c.writer.Flush(); err != nil {
				return err
			}
			continue
		}

		user := msg.Parameters["user"]
		if user != c.cfg.User {
			c.sendFatalError("28000", "authentication failed for user \""+user+"\"")
			return errors.Newf("unknown user: %s", user)
		}

		// Request cleartext password.
		if err := c.writer.WriteAuthCleartextPassword(); err != nil {
			return err
		}
		if err := c.writer.Flush(); err != nil {
			return err
		}

		// Read the password response.
		msgType, payload, err := c.reader.ReadMessage()
		if err != nil {
			return errors.Wrap(err, "read password")
		}
		if msgType != pgwire.MsgPasswordMessage {
			return errors.Newf("expected PasswordMessage, got '%c'", msgType)
		}

		password := stripNull(payload)
		if subtle.ConstantTimeCompare([]byte(password), []byte(c.cfg.Password)) != 1 {
			c.sendFatalError("28P01", "password authentication failed for user \""+user+"\"")
			return errors.Newf("bad password for user: %s", user)
		}

		// Authentication succeeded; send the post-auth preamble.
		if err := c.writer.WriteAuthOk(); err != nil {
			return err
		}
		serverParams := [][2]string{
			{"server_version", version.ServerVersion()},
			{"server_encoding", "UTF8"},
			{"client_encoding", "UTF8"},
			{"DateStyle", "ISO, MDY"},
			{"standard_conforming_strings", "on"},
		}
		for _, p := range serverParams {
			if err := c.writer.WriteParameterStatus(p[0], p[1]); err != nil {
				return err
			}
		}
		if err := c.writer.WriteBackendKeyData(int32(os.Getpid()), 0); err != nil {
			return err
		}
		if err := c.writer.WriteReadyForQuery(pgwire.TxIdle); err != nil {
			return err
		}
		return c.writer.Flush()
	}
}

// queryLoop reads and responds to client messages until the client
// disconnects or a write error occurs.
func (c *Connection) queryLoop() {
	for {
		msgType, payload, err := c.reader.ReadMessage()
		if err != nil {
			switch {
			case errors.Is(err, pgwire.ErrMessageTooLarge):
				c.log.Warn("message too large", zap.Error(err))
				c.sendFatalError("54000", "message exceeds maximum size")
			case errors.Is(err, os.ErrDeadlineExceeded):
				// Shutdown expired the read deadline.
				c.sendFatalError("57P01", "terminating connection due to administrator command")
			case errors.Is(err, io.EOF):
			default:
				c.log.Info("read failed", zap.Error(err))
			}
			return
		}

		switch {
		case msgType == pgwire.MsgQuery:
			if err := c.handleQuery(stripNull(payload)); err != nil {
				c.log.Info("write failed", zap.Error(err))
				return
			}
		case msgType == pgwire.MsgTerminate:
			return
		case pgwire.IsExtendedQuery(msgType):
			if err := c.handleExtended(msgType); err != nil {
				c.log.Info("write failed", zap.Error(err))
				return
			}
		default:
			c.log.Warn("unsupported message type", zap.String("type", string(msgType)))
		}
	}
}

// handleExtended rejects the extended query protocol. The first message of
// a batch gets an error; everything up to Sync is dropped and Sync is
// answered with ReadyForQuery.
func (c *Connection) handleExtended(msgType byte) error {
	if msgType == pgwire.MsgSync {
		c.skipUntilSync = false
		return c.sendReady()
	}
	if c.skipUntilSync {
		return nil
	}
	c.skipUntilSync = true
	if err := c.writer.WriteErrorResponse(pgwire.SeverityError, "0A000",
		"extended query protocol is not supported", "Use the simple query protocol."); err != nil {
		return err
	}
	return c.writer.Flush()
}

// handleQuery processes a single command string and writes the response.
func (c *Connection) handleQuery(query string) error {
	query = strings.TrimSpace(query)

	if query == "" {
		if err := c.writer.WriteEmptyQueryResponse(); err != nil {
			return err
		}
		return c.sendReady()
	}

	result, err := c.execute(query)
	if err != nil {
		qe := executor.WrapError(err).(*executor.QueryError)
		if werr := c.writer.WriteErrorResponse(pgwire.SeverityError, qe.Code, qe.Message, qe.Detail); werr != nil {
			return werr
		}
		return c.sendReady()
	}

	for _, n := range result.Notices {
		if err := c.writer.WriteNoticeResponse(n); err != nil {
			return err
		}
	}

	if result.Columns != nil {
		cols := make([]pgwire.ColumnInfo, len(result.Columns))
		for i, rc := range result.Columns {
			cols[i] = pgwire.ColumnInfo{
				Name:         rc.Name,
				DataTypeOID:  rc.TypeOID,
				DataTypeSize: rc.TypeSize,
				TypeModifier: -1,
			}
		}
		if err := c.writer.WriteRowDescription(cols); err != nil {
			return err
		}
		for _, row := range result.Rows {
			if err := c.writer.WriteDataRow(row); err != nil {
				return err
			}
		}
	}

	if err := c.writer.WriteCommandComplete(result.Tag); err != nil {
		return err
	}
	return c.sendReady()
}

// execute runs the command, tracing it when debug logging is on.
func (c *Connection) execute(query string) (*executor.Result, error) {
	if ce := c.log.Check(zap.DebugLevel, "command"); ce != nil {
		result, tr, err := c.exec.ExecuteTraced(query)
		ce.Write(
			zap.String("command", query),
			zap.String("stmt", tr.StmtType),
			zap.String("target", tr.Target),
			zap.Duration("parse", tr.Parse),
			zap.Duration("exec", tr.Exec),
			zap.Duration("render", tr.Render),
			zap.Duration("total", tr.Total),
			zap.Int64("rows", tr.RowsReturned),
			zap.Error(err),
		)
		return result, err
	}
	return c.exec.Execute(query)
}

// sendReady sends ReadyForQuery and flushes the write buffer.
func (c *Connection) sendReady() error {
	if err := c.writer.WriteReadyForQuery(pgwire.TxIdle); err != nil {
		return err
	}
	return c.writer.Flush()
}

// sendFatalError writes a FATAL error response and flushes. Write errors
// are ignored since the connection is about to close.
func (c *Connection) sendFatalError(code, message string) {
	c.writer.WriteErrorResponse(pgwire.SeverityFatal, code, message, "")
	c.writer.Flush()
}

// stripNull removes a trailing null byte from the payload, which is how
// the PG protocol terminates strings in most message types.
func stripNull(b []byte) string {
	if len(b) > 0 && b[len(b)-1] == 0 {
		return string(b[:len(b)-1])
	}
	return string(b)
}
