package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/weiawesome/wes-io-collab/collab-relay/internal/domain"
	"github.com/weiawesome/wes-io-collab/collab-relay/internal/hub"
	pkglog "github.com/weiawesome/wes-io-collab/pkg/log"
	"github.com/weiawesome/wes-io-collab/pkg/pubsub"
)

// Config tunes broker interaction.
type Config struct {
	PublishTimeout   time.Duration
	ResubscribeDelay time.Duration
}

type relayService struct {
	hub    *hub.Hub
	broker pubsub.PubSub
	config Config

	wg     sync.WaitGroup
	doneCh chan struct{}
}

func NewRelayService(h *hub.Hub, broker pubsub.PubSub, cfg Config) RelayService {
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 2 * time.Second
	}
	if cfg.ResubscribeDelay <= 0 {
		cfg.ResubscribeDelay = 2 * time.Second
	}
	return &relayService{
		hub:    h,
		broker: broker,
		config: cfg,
		doneCh: make(chan struct{}),
	}
}

func (s *relayService) Start(ctx context.Context) error {
	kinds := []string{pubsub.KindCode, pubsub.KindCursor}
	subs := make([]<-chan *pubsub.Message, 0, len(kinds))
	for _, kind := range kinds {
		ch, err := s.broker.SubscribePattern(ctx, pubsub.RoomPattern(kind))
		if err != nil {
			return err
		}
		subs = append(subs, ch)
	}

	for i, kind := range kinds {
		s.wg.Add(1)
		go s.fanOut(ctx, kind, subs[i])
	}
	go func() {
		s.wg.Wait()
		close(s.doneCh)
	}()
	return nil
}

func (s *relayService) Done() <-chan struct{} { return s.doneCh }

// fanOut forwards broker messages for one kind to local subscribers.
// A subscription that ends while ctx is alive is re-established.
func (s *relayService) fanOut(ctx context.Context, kind string, ch <-chan *pubsub.Message) {
	defer s.wg.Done()
	l := pkglog.Component("fan-out")
	pattern := pubsub.RoomPattern(kind)

	for {
		s.forward(ctx, ch)
		if ctx.Err() != nil {
			return
		}

		l.Warn().Str(pkglog.FieldTopic, pattern).Dur("retry_in", s.config.ResubscribeDelay).Msg("broker subscription ended, resubscribing")
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.config.ResubscribeDelay):
			}
			next, err := s.broker.SubscribePattern(ctx, pattern)
			if err == nil {
				ch = next
				l.Info().Str(pkglog.FieldTopic, pattern).Msg("broker subscription restored")
				break
			}
			if errors.Is(err, pubsub.ErrClosed) {
				return
			}
			l.Warn().Err(err).Str(pkglog.FieldTopic, pattern).Msg("resubscribe failed")
		}
	}
}

func (s *relayService) forward(ctx context.Context, ch <-chan *pubsub.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := s.hub.BroadcastToTopic(msg.Topic, domain.NewMessageFrame(msg.Topic, msg.Payload)); err != nil {
				l := pkglog.Component("fan-out")
				l.Error().Err(err).Str(pkglog.FieldTopic, msg.Topic).Msg("broadcast error")
			}
		}
	}
}

func (s *relayService) HandleConnect(client *hub.Client) {
	client.SendMessage(domain.NewConnectedFrame(client.ID))
}

func (s *relayService) HandleFrame(ctx context.Context, client *hub.Client, data []byte) {
	l := pkglog.Component("relay")

	var frame domain.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		client.SendMessage(domain.NewErrorFrame("invalid frame"))
		return
	}

	switch frame.Type {
	case domain.FrameSubscribe:
		route, err := domain.ParseRoute(frame.Destination, domain.TopicPrefix)
		if err != nil {
			client.SendMessage(domain.NewErrorFrame(err.Error() + ": " + frame.Destination))
			return
		}
		s.hub.Subscribe(client, route.Topic)

	case domain.FrameUnsubscribe:
		route, err := domain.ParseRoute(frame.Destination, domain.TopicPrefix)
		if err != nil {
			client.SendMessage(domain.NewErrorFrame(err.Error() + ": " + frame.Destination))
			return
		}
		s.hub.Unsubscribe(client, route.Topic)

	case domain.FrameSend:
		route, err := domain.ParseRoute(frame.Destination, domain.AppPrefix)
		if err != nil {
			client.SendMessage(domain.NewErrorFrame(err.Error() + ": " + frame.Destination))
			return
		}
		payload, err := domain.NormalizeBody(route, frame.Body)
		if err != nil {
			l.Debug().Err(err).Str(pkglog.FieldSessionID, client.ID).Str(pkglog.FieldDestination, frame.Destination).Msg("rejected send")
			client.SendMessage(domain.NewErrorFrame(err.Error()))
			return
		}

		pubCtx, cancel := context.WithTimeout(ctx, s.config.PublishTimeout)
		defer cancel()
		if err := s.broker.Publish(pubCtx, route.Topic, payload); err != nil {
			l.Warn().Err(err).Str(pkglog.FieldRoomID, route.RoomID).Str(pkglog.FieldTopic, route.Topic).Msg("publish failed")
			client.SendMessage(domain.NewErrorFrame("broker unavailable"))
		}

	default:
		client.SendMessage(domain.NewErrorFrame("unknown frame type " + frame.Type))
	}
}
