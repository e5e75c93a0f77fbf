// Package wsapi implements the WebSocket session protocol of spec.md
// §4.I: the refresh/access handshake, the sync-version reconciliation
// that happens once per connect, and the event-delivery loop that
// follows it. It is grounded on the teacher's pkg/events.ConnectionManager
// (github.com/afrodite/datingcore's own history): register-on-connect,
// snapshot-then-send, deferred unregister-on-exit.
package wsapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/coder/websocket"

	"github.com/afrodite/datingcore/pkg/accountcache"
	"github.com/afrodite/datingcore/pkg/apperrors"
	"github.com/afrodite/datingcore/pkg/eventbus"
	"github.com/afrodite/datingcore/pkg/identity"
)

// idleTimeout is the server-side heartbeat of spec.md §4.I: a
// connection that sees no traffic for this long is closed.
const idleTimeout = 6 * time.Minute

// writeTimeout bounds any single WebSocket write, mirroring the
// teacher's ConnectionManager.writeTimeout.
const writeTimeout = 10 * time.Second

// handshakeTimeout bounds how long step (1)/(3) of the handshake may
// take to arrive before the connection is abandoned.
const handshakeTimeout = 15 * time.Second

// SyncVersions is the client's step-(3) payload: the 8 sync-version
// kinds of spec.md §4.I, and the server's reply shape for each.
type SyncVersions struct {
	AccountData         uint32 `json:"account_data"`
	ChatData            uint32 `json:"chat_data"`
	ProfileAttributes   uint32 `json:"profile_attributes"`
	Profile             uint32 `json:"profile"`
	NewsCount           uint32 `json:"news_count"`
	MediaContent        uint32 `json:"media_content"`
	DailyLikesLeft      uint32 `json:"daily_likes_left"`
	PushNotificationInfo uint32 `json:"push_notification_info"`
}

type refreshMessage struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPairMessage struct {
	Type    string `json:"type"`
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// mismatchMessage reports the server's current value for one kind that
// didn't match the client's submitted version. Clients refetch that
// data kind over REST on receipt.
type mismatchMessage struct {
	Type           string `json:"type"`
	Kind           string `json:"kind"`
	ServerVersion  uint32 `json:"server_version"`
}

type syncCompleteMessage struct {
	Type string `json:"type"`
}

type eventMessage struct {
	Type    string `json:"type"`
	Kind    string `json:"kind"`
	Payload any    `json:"payload,omitempty"`
}

// Manager drives WebSocket sessions end to end: handshake, sync
// reconciliation, and the event-delivery loop. The zero value is not
// usable; construct with New.
type Manager struct {
	identity *identity.Store
	cache    *accountcache.AccountCache
	bus      *eventbus.Bus
}

// New builds a session Manager over its collaborators.
func New(identityStore *identity.Store, cache *accountcache.AccountCache, bus *eventbus.Bus) *Manager {
	return &Manager{identity: identityStore, cache: cache, bus: bus}
}

// HandleConnection runs the full lifecycle of one WebSocket session:
// handshake, sync, then event delivery until the socket closes or the
// idle timer fires. It blocks until the session ends. remoteAddr is the
// address the new access token gets bound to, per spec.md §4.A.
func (m *Manager) HandleConnection(parentCtx context.Context, conn *websocket.Conn, remoteAddr string) {
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()
	defer conn.Close(websocket.StatusNormalClosure, "")

	accountID, err := m.handshake(ctx, conn, remoteAddr)
	if err != nil {
		slog.Warn("wsapi: handshake failed", "error", err, "remote_addr", remoteAddr)
		return
	}

	m.cache.WriteByID(accountID, func() *accountcache.Entry {
		return &accountcache.Entry{AccountID: accountID}
	}, func(e *accountcache.Entry) {
		e.DeliveryMode = accountcache.Connected
		// spec.md §4.J: "on session connect, the cache clears sent_flags
		// and hands remaining pending flags to the client". The pending
		// flags themselves resurface as ordinary in-session events once
		// the bus replays them; nothing further to hand over here.
		e.SentFlags = 0
	})
	defer m.cache.WriteByID(accountID, func() *accountcache.Entry {
		return &accountcache.Entry{AccountID: accountID}
	}, func(e *accountcache.Entry) {
		e.DeliveryMode = accountcache.Offline
	})

	if err := m.reconcileSync(ctx, conn, accountID); err != nil {
		slog.Warn("wsapi: sync reconciliation failed", "account_id", accountID, "error", err)
		return
	}

	m.deliverEvents(ctx, conn, accountID)
}

// handshake runs spec.md §4.I steps (1) and (2): validate the client's
// refresh token, mint a fresh access+refresh pair bound to remoteAddr,
// and send it back.
func (m *Manager) handshake(ctx context.Context, conn *websocket.Conn, remoteAddr string) (int64, error) {
	readCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	_, data, err := conn.Read(readCtx)
	if err != nil {
		return 0, err
	}
	var msg refreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return 0, apperrors.ErrUnauthorized
	}

	pair, err := m.identity.ExchangeRefresh(ctx, msg.RefreshToken, remoteAddr)
	if err != nil {
		return 0, err
	}
	accountID, err := m.identity.Resolve(ctx, pair.Access, remoteAddr)
	if err != nil {
		return 0, err
	}

	if err := m.send(ctx, conn, tokenPairMessage{Type: "token_pair", Access: pair.Access, Refresh: pair.Refresh}); err != nil {
		return 0, err
	}
	return accountID, nil
}

// reconcileSync runs spec.md §4.I step (3): read the client's sync
// versions, compare each against the cache's current values, and send
// a mismatch message for every kind that differs. Matching kinds get no
// payload at all.
func (m *Manager) reconcileSync(ctx context.Context, conn *websocket.Conn, accountID int64) error {
	readCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	_, data, err := conn.Read(readCtx)
	if err != nil {
		return err
	}
	var client SyncVersions
	if err := json.Unmarshal(data, &client); err != nil {
		return apperrors.ErrUnauthorized
	}

	var current SyncVersions
	found := m.cache.ReadByID(accountID, func(e *accountcache.Entry) {
		current.AccountData = e.Sync.AccountData
		current.ProfileAttributes = e.Sync.ProfileAttributes
		current.NewsCount = e.Sync.NewsCount
		current.MediaContent = e.Sync.MediaContent
		current.PushNotificationInfo = e.InfoSyncVer
		if e.Profile != nil {
			current.Profile = e.Profile.ProfileSyncVer
		}
		if e.Chat != nil {
			current.ChatData = e.Chat.ChatDataSyncVer
			current.DailyLikesLeft = e.Chat.LikesSyncVersion
		}
	})
	if !found {
		return apperrors.ErrDataError
	}

	for _, mismatch := range diffSyncVersions(client, current) {
		if err := m.send(ctx, conn, mismatch); err != nil {
			return err
		}
	}
	return m.send(ctx, conn, syncCompleteMessage{Type: "sync_complete"})
}

func diffSyncVersions(client, current SyncVersions) []mismatchMessage {
	var out []mismatchMessage
	add := func(kind string, clientVer, serverVer uint32) {
		if clientVer != serverVer {
			out = append(out, mismatchMessage{Type: "sync_mismatch", Kind: kind, ServerVersion: serverVer})
		}
	}
	add("account_data", client.AccountData, current.AccountData)
	add("chat_data", client.ChatData, current.ChatData)
	add("profile_attributes", client.ProfileAttributes, current.ProfileAttributes)
	add("profile", client.Profile, current.Profile)
	add("news_count", client.NewsCount, current.NewsCount)
	add("media_content", client.MediaContent, current.MediaContent)
	add("daily_likes_left", client.DailyLikesLeft, current.DailyLikesLeft)
	add("push_notification_info", client.PushNotificationInfo, current.PushNotificationInfo)
	return out
}

// deliverEvents is the event-delivery mode of spec.md §4.I: drain the
// account's event queue to the socket, reset the idle timer on any
// traffic, and close once idleTimeout passes with nothing happening on
// either side. A background goroutine does the blocking conn.Read so a
// client-initiated close (or any inbound frame, treated as a liveness
// ping) is observed promptly.
func (m *Manager) deliverEvents(ctx context.Context, conn *websocket.Conn, accountID int64) {
	ch, unsubscribe := m.bus.Subscribe(accountID)
	defer unsubscribe()

	readCtx, cancelRead := context.WithCancel(ctx)
	defer cancelRead()
	readActivity := make(chan struct{}, 1)
	go func() {
		for {
			if _, _, err := conn.Read(readCtx); err != nil {
				cancelRead()
				return
			}
			select {
			case readActivity <- struct{}{}:
			default:
			}
		}
	}()

	idle := time.NewTimer(idleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-readCtx.Done():
			return
		case <-readActivity:
			resetTimer(idle, idleTimeout)
		case <-idle.C:
			slog.Info("wsapi: closing idle connection", "account_id", accountID)
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := m.send(ctx, conn, eventMessage{Type: "event", Kind: string(evt.Kind), Payload: evt.Payload}); err != nil {
				slog.Warn("wsapi: send failed, closing", "account_id", accountID, "error", err)
				return
			}
			resetTimer(idle, idleTimeout)
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

func (m *Manager) send(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
