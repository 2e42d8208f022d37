package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/weiawesome/wes-io-collab/collab-client/internal/completion"
	"github.com/weiawesome/wes-io-collab/collab-client/internal/config"
	"github.com/weiawesome/wes-io-collab/collab-client/internal/editor"
	"github.com/weiawesome/wes-io-collab/collab-client/internal/identity"
	"github.com/weiawesome/wes-io-collab/collab-client/internal/session"
	"github.com/weiawesome/wes-io-collab/collab-client/internal/transport"
	pkglog "github.com/weiawesome/wes-io-collab/pkg/log"
	"github.com/weiawesome/wes-io-collab/pkg/pubsub"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	pkglog.Init(pkglog.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, ServiceName: "collab-client"})
	logger := pkglog.L()

	gen, err := identity.NewGenerator(cfg.Participant.IDGenerator)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid participant id generator")
	}
	ident, err := identity.New(gen, cfg.Participant.ID)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create participant identity")
	}

	doc, err := editor.NewFileBuffer(cfg.Editor.File)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Editor.File).Msg("failed to open document")
	}

	broker, err := newBroker(cfg, ident)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure transport")
	}
	newTransport := func(h transport.Handlers) session.Transport {
		return transport.NewChannel(broker, transport.Config{
			ReconnectDelay: cfg.Transport.ReconnectDelay,
			PublishTimeout: cfg.Transport.PublishTimeout,
		}, h)
	}

	backend := completion.NewHTTPBackend(cfg.Completion.URL, ident.ParticipantID, nil)
	sess := session.New(ident, doc, newTransport, backend, session.Config{
		CursorTTL:         cfg.Presence.CursorTTL,
		SweepInterval:     cfg.Presence.SweepInterval,
		Language:          cfg.Completion.Language,
		CompletionTimeout: cfg.Completion.Timeout,
	})
	doc.SetListener(sess)

	ctx, cancel := context.WithCancel(context.Background())
	go sess.Run(ctx)

	if err := doc.Start(ctx); err != nil {
		cancel()
		logger.Fatal().Err(err).Msg("failed to watch document")
	}

	room := sess.Join(cfg.Room.ID)
	logger.Info().
		Str(pkglog.FieldRoomID, room).
		Str(pkglog.FieldParticipantID, ident.ParticipantID).
		Str("document", doc.Path()).
		Str("transport", cfg.Transport.Driver).
		Msg("collab-client started")

	go readCommands(sess, doc)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down collab-client")

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		sess.Close() // 1. unsubscribe and disconnect
		doc.Close()  // 2. stop watching the document
		cancel()     // 3. stop the event loop
		<-sess.Done()
	}()

	select {
	case <-shutdownDone:
		logger.Info().Msg("collab-client stopped")
	case <-time.After(10 * time.Second):
		logger.Warn().Msg("shutdown timed out after 10s")
	}
}

func newBroker(cfg *config.Config, ident identity.Identity) (transport.Broker, error) {
	switch cfg.Transport.Driver {
	case "ws", "":
		return transport.NewWSBroker(transport.WSConfig{
			URL:              cfg.Transport.URL,
			HandshakeTimeout: cfg.Transport.HandshakeTimeout,
			PingInterval:     cfg.Transport.PingInterval,
			PongWait:         cfg.Transport.PongWait,
			WriteWait:        cfg.Transport.WriteWait,
			MaxMessageSize:   cfg.Transport.MaxMessageSize,
		}, nil), nil
	case "pubsub":
		psCfg := cfg.PubSub
		if psCfg.Kafka.GroupID == "" {
			psCfg.Kafka.GroupID = "collab-client-" + ident.ParticipantID
		}
		return transport.NewPubSubBroker(func(ctx context.Context) (pubsub.PubSub, error) {
			return pubsub.NewPubSub(ctx, psCfg)
		}, cfg.Transport.HealthInterval), nil
	default:
		return nil, fmt.Errorf("unknown transport driver %q", cfg.Transport.Driver)
	}
}

// readCommands serves a tiny stdin console:
//
//	complete [offset]  request completions (default: end of document)
//	accept <n>         insert proposal n
//	forget <id>        drop a participant's cursor
//	status             print connection state
func readCommands(sess *session.Session, doc *editor.FileBuffer) {
	logger := pkglog.Component("console")
	scanner := bufio.NewScanner(os.Stdin)

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "complete":
			offset := len([]rune(doc.Text()))
			if len(fields) > 1 {
				if n, err := strconv.Atoi(fields[1]); err == nil {
					offset = n
				}
			}
			sess.RequestCompletion(offset)

		case "accept":
			if len(fields) < 2 {
				continue
			}
			n, err := strconv.Atoi(fields[1])
			at, proposals := doc.Proposals()
			if err != nil || n < 0 || n >= len(proposals) {
				logger.Warn().Str("arg", fields[1]).Msg("no such proposal")
				continue
			}
			// Writing the file makes the watcher report a local edit.
			text := []rune(doc.Text())
			if at > len(text) {
				at = len(text)
			}
			next := string(text[:at]) + proposals[n].InsertText + string(text[at:])
			if err := os.WriteFile(doc.Path(), []byte(next), 0o644); err != nil {
				logger.Error().Err(err).Msg("failed to write document")
			}

		case "forget":
			if len(fields) > 1 {
				sess.Forget(fields[1])
			}

		case "status":
			logger.Info().
				Str(pkglog.FieldParticipantID, sess.ParticipantID()).
				Bool("connected", sess.Connected()).
				Int("remote_cursors", sess.RemoteCursors()).
				Int(pkglog.FieldVersion, sess.LocalVersion()).
				Msg("status")

		default:
			logger.Warn().Str("command", fields[0]).Msg("unknown command")
		}
	}
}
