package server

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"ripple/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	wsTicketTTL = 30 * time.Second

	// How long a consumed ticket stays valid in-process. The fiber websocket
	// upgrade can evaluate the auth middleware more than once for the same
	// handshake, after the ticket is already gone from Redis.
	consumedTicketGrace = 10 * time.Second
)

// IssueWSTicket handles POST /api/ws/ticket. It mints a short-lived
// single-use ticket so browser clients never put bearer tokens in WS URLs.
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	if s.redis == nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewInternalError(fmt.Errorf("ticket store unavailable")))
	}

	ticket := uuid.NewString()
	key := fmt.Sprintf("ws_ticket:%s", ticket)
	if err := s.redis.Set(c.Context(), key, strconv.FormatUint(uint64(userID), 10), wsTicketTTL).Err(); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return c.JSON(fiber.Map{
		"ticket":     ticket,
		"expires_in": int(wsTicketTTL.Seconds()),
	})
}

// resolveWSTicket consumes a ticket atomically from Redis (GETDEL) and caches
// it in-process for the rest of the handshake. WS paths may resolve the same
// ticket again from the cache; non-WS paths always burn it.
func (s *Server) resolveWSTicket(ctx context.Context, ticket string, isWSPath bool) (uint, bool) {
	s.consumedTicketsMu.Lock()
	if entry, ok := s.consumedTickets[ticket]; ok {
		if isWSPath && time.Since(entry.consumeAt) < consumedTicketGrace {
			s.consumedTicketsMu.Unlock()
			return entry.userID, true
		}
		delete(s.consumedTickets, ticket)
	}
	s.consumedTicketsMu.Unlock()

	key := fmt.Sprintf("ws_ticket:%s", ticket)
	userIDStr, err := s.redis.GetDel(ctx, key).Result()
	if err != nil {
		return 0, false
	}
	userID, err := strconv.ParseUint(userIDStr, 10, 32)
	if err != nil {
		return 0, false
	}

	s.consumedTicketsMu.Lock()
	s.pruneConsumedTicketsLocked()
	s.consumedTickets[ticket] = consumedTicketEntry{userID: uint(userID), consumeAt: time.Now()}
	s.consumedTicketsMu.Unlock()

	return uint(userID), true
}

func (s *Server) pruneConsumedTicketsLocked() {
	for t, entry := range s.consumedTickets {
		if time.Since(entry.consumeAt) >= consumedTicketGrace {
			delete(s.consumedTickets, t)
		}
	}
}

// consumeWSTicket drops a ticket from the in-process cache once the
// websocket connection it authorized is established.
func (s *Server) consumeWSTicket(_ context.Context, ticket any) {
	str, ok := ticket.(string)
	if !ok || str == "" {
		return
	}
	s.consumedTicketsMu.Lock()
	delete(s.consumedTickets, str)
	s.consumedTicketsMu.Unlock()
}

// WebsocketHandler returns the websocket upgrade handler. Authentication is
// handled by route middleware; the verified userID is read from connection
// locals, so the hub never trusts a client-declared identity.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userIDVal := conn.Locals("userID")
		if userIDVal == nil {
			if cerr := conn.Close(); cerr != nil {
				log.Printf("websocket close error: %v", cerr)
			}
			return
		}
		uid, ok := userIDVal.(uint)
		if !ok {
			if cerr := conn.Close(); cerr != nil {
				log.Printf("websocket close error: %v", cerr)
			}
			return
		}

		s.consumeWSTicket(context.Background(), conn.Locals("wsTicket"))

		client, err := s.hub.Register(uid, conn)
		if err != nil {
			log.Printf("WebSocket: failed to register user %d: %v", uid, err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		go client.WritePump()

		// Read pump runs in the handler goroutine (blocking) and
		// unregisters the client on exit.
		client.ReadPump()
	})
}
