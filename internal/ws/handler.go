package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/opsboard-relay/internal/protocol"
)

type Options struct {
	OutboxSize int
	// ReadTimeout bounds how long a ping may go unanswered. A client that
	// only listens stays connected as long as it answers pings.
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	OriginPatterns []string
}

func (o Options) withDefaults() Options {
	if o.OutboxSize <= 0 {
		o.OutboxSize = 64
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 60 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 3 * time.Second
	}
	if o.PingInterval <= 0 || o.PingInterval >= o.ReadTimeout {
		o.PingInterval = o.ReadTimeout / 2
	}
	return o
}

// ConnObserver counts open connections. A nil ConnObserver is allowed.
type ConnObserver interface {
	ConnOpened()
	ConnClosed()
}

// Handler upgrades GET /ws and runs one protocol session per socket.
func Handler(p *protocol.Handler, opts Options, obs ConnObserver, log *zap.Logger) http.HandlerFunc {
	opts = opts.withDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("ws")

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			log.Debug("accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		connID := uuid.NewString()
		clog := log.With(zap.String("conn", connID))
		if obs != nil {
			obs.ConnOpened()
			defer obs.ConnClosed()
		}

		out := make(chan []byte, opts.OutboxSize)
		sess := p.Connect(connID, out)
		defer p.Disconnect(sess)
		clog.Info("connected", zap.String("remote", r.RemoteAddr))

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine. The bus closes out on eviction or disconnect; an
		// eviction must take the socket down so the client re-joins.
		go func() {
			defer cancel()
			for frame := range out {
				wctx, wcancel := context.WithTimeout(ctx, opts.WriteTimeout)
				err := conn.Write(wctx, websocket.MessageText, frame)
				wcancel()
				if err != nil {
					clog.Debug("write failed", zap.Error(err))
					return
				}
			}
			if ctx.Err() == nil {
				conn.Close(websocket.StatusPolicyViolation, "subscriber too slow")
			}
		}()

		// Liveness comes from pings, not from client traffic.
		go func() {
			ticker := time.NewTicker(opts.PingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					pctx, pcancel := context.WithTimeout(ctx, opts.ReadTimeout)
					err := conn.Ping(pctx)
					pcancel()
					if err != nil {
						if ctx.Err() == nil {
							clog.Info("ping failed", zap.Error(err))
						}
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop
		for {
			typ, data, err := conn.Read(ctx)
			if err != nil {
				switch status := websocket.CloseStatus(err); {
				case status == websocket.StatusNormalClosure, status == websocket.StatusGoingAway:
					clog.Info("disconnected")
				case errors.Is(err, context.Canceled):
					clog.Info("connection closed by server")
				default:
					clog.Info("disconnected", zap.Error(err))
				}
				return
			}
			if typ != websocket.MessageText {
				continue
			}
			_ = p.Handle(ctx, sess, data)
		}
	}
}
