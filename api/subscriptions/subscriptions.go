// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package subscriptions

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/Increment-Finance/peripheral-contracts-sub004/api/utils"
	"github.com/Increment-Finance/peripheral-contracts-sub004/log"
	"github.com/Increment-Finance/peripheral-contracts-sub004/runtime"
)

var (
	logger = log.WithContext("pkg", "subscriptions")

	errTooSlow = errors.New("subscriber too slow")
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 7) / 10

	receiptBuffer = 64
)

type Subscriptions struct {
	rt       *runtime.Runtime
	upgrader *websocket.Upgrader
	done     chan struct{}
	wg       sync.WaitGroup
}

func New(rt *runtime.Runtime, allowedOrigins []string) *Subscriptions {
	return &Subscriptions{
		rt: rt,
		upgrader: &websocket.Upgrader{
			EnableCompression: true,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, allowed := range allowedOrigins {
					if allowed == origin || allowed == "*" {
						return true
					}
				}
				return false
			},
		},
		done: make(chan struct{}),
	}
}

// handleSubscribeReceipts streams the receipt of every block executed after
// the connection is made. With reverted=false reverted blocks are skipped.
func (s *Subscriptions) handleSubscribeReceipts(w http.ResponseWriter, req *http.Request) error {
	withReverted := true
	if v := req.URL.Query().Get("reverted"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return utils.BadRequest(errors.WithMessage(err, "reverted"))
		}
		withReverted = b
	}

	// subscribed before the upgrade, so nothing executed after the handshake is missed
	ch := make(chan *runtime.Receipt)
	sub := s.rt.SubscribeReceipts(ch)
	stop := make(chan struct{})
	queue, overflow := forward(ch, stop)
	defer func() {
		sub.Unsubscribe()
		close(stop)
	}()

	s.wg.Add(1)
	defer s.wg.Done()

	conn, err := s.upgrader.Upgrade(w, req, nil)
	if err != nil {
		// the upgrader has already responded
		logger.Debug("upgrade failed", "err", err)
		return nil
	}
	defer conn.Close()

	if err := s.pipe(conn, queue, overflow, sub.Err(), withReverted); err != nil {
		logger.Debug("subscription closed", "err", err)
	}
	return nil
}

// forward moves receipts from the feed channel in to a queue of
// receiptBuffer receipts, so the executor sending on in never waits for a
// connection. overflow is closed once the queue is full. From then on
// receipts are discarded until stop is closed.
func forward(in <-chan *runtime.Receipt, stop <-chan struct{}) (queue <-chan *runtime.Receipt, overflow <-chan struct{}) {
	out := make(chan *runtime.Receipt, receiptBuffer)
	full := make(chan struct{})
	go func() {
		overflowed := false
		for {
			select {
			case receipt := <-in:
				if overflowed {
					continue
				}
				select {
				case out <- receipt:
				default:
					overflowed = true
					close(full)
				}
			case <-stop:
				return
			}
		}
	}()
	return out, full
}

func (s *Subscriptions) pipe(conn *websocket.Conn, ch <-chan *runtime.Receipt, overflow <-chan struct{}, subErr <-chan error, withReverted bool) error {
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case receipt := <-ch:
			if receipt.Reverted && !withReverted {
				continue
			}
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return err
			}
			if err := conn.WriteJSON(receipt); err != nil {
				return err
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return err
			}
		case <-overflow:
			msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscriber too slow")
			if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
				return err
			}
			return errTooSlow
		case err := <-subErr:
			return err
		case <-closed:
			return nil
		case <-s.done:
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown")
			return conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		}
	}
}

// Close ends every open subscription and waits for them to return.
func (s *Subscriptions) Close() {
	close(s.done)
	s.wg.Wait()
}

func (s *Subscriptions) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/receipts").
		Methods(http.MethodGet).
		Name("subscriptions_receipts").
		HandlerFunc(utils.WrapHandlerFunc(s.handleSubscribeReceipts))
}
