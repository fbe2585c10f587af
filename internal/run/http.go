package run

import (
	"context"
	"time"

	"kisanvoice/internal/control"
	"kisanvoice/internal/langdetect"
	"kisanvoice/internal/playback"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// newApp builds the local HTTP surface: metrics, a small JSON API mirroring
// the control socket, and a websocket stream of state events.
func (s *Server) newApp(ctx context.Context) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "kisanvoice",
		DisableStartupMessage: true,
	})

	app.Get("/metrics", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, "text/plain; version=0.0.4")
		return c.SendString(s.metrics.text())
	})

	api := app.Group("/api")
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(control.SimpleResponse{OK: true, Message: "ok"})
	})
	api.Get("/status", func(c *fiber.Ctx) error {
		return c.JSON(s.status())
	})
	api.Post("/listen", func(c *fiber.Ctx) error {
		var body struct {
			Lang string `json:"lang"`
			Wait bool   `json:"wait"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid body")
			}
		}
		if body.Wait {
			return c.JSON(s.listenAndWait(ctx, body.Lang))
		}
		return c.JSON(control.ListenResult{OK: true, Lang: s.startListening(body.Lang, nil)})
	})
	api.Post("/stop", func(c *fiber.Ctx) error {
		s.stopListening()
		return c.JSON(control.SimpleResponse{OK: true, Message: "stopped"})
	})
	api.Post("/speak", func(c *fiber.Ctx) error {
		var msg playback.Message
		if err := c.BodyParser(&msg); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid message")
		}
		if msg.Content == "" && msg.AudioURL == "" {
			return fiber.NewError(fiber.StatusBadRequest, "content or audio_url required")
		}
		return c.JSON(s.toggleSpeak(msg))
	})
	api.Get("/detect", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"lang": langdetect.Detect(c.Query("text"))})
	})

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/state", websocket.New(s.handleStateWS))
	return app
}

// handleStateWS sends the current capture state, then every event.
func (s *Server) handleStateWS(c *websocket.Conn) {
	ch := s.hub.subscribe()
	defer s.hub.unsubscribe(ch)

	st := s.capture.State()
	if err := c.WriteJSON(control.Event{Type: "capture", Capture: &st, Timestamp: time.Now()}); err != nil {
		return
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case data, ok := <-ch:
			if !ok {
				return
			}
			if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

func (s *Server) httpServe(ctx context.Context, addr string) {
	app := s.newApp(ctx)
	go func() {
		<-ctx.Done()
		_ = app.Shutdown()
	}()
	s.logger.Infof("http listening on http://%s (metrics, api, ws)", addr)
	if err := app.Listen(addr); err != nil && ctx.Err() == nil {
		s.logger.Warnf("http server: %v", err)
	}
}
