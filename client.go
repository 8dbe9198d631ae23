// Copyright (c) 2021 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package wacore implements the core of a client for a proprietary
// end-to-end-encrypted chat protocol multiplexed over a persistent
// bidirectional websocket: the inbound message-processing pipeline and the
// outbound media/message preparation path. The websocket transport, the
// Signal session store, the binary stanza codec, protobuf wiring, HTTP
// media upload, and the app-state resync engine are external collaborators,
// reached only through the interfaces this package declares.
package wacore

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"go.mau.fi/util/random"

	"github.com/wacore/wacore/appstate"
	"github.com/wacore/wacore/binary"
	"github.com/wacore/wacore/mediaprep"
	"github.com/wacore/wacore/socket"
	"github.com/wacore/wacore/store"
	"github.com/wacore/wacore/types"
	waLog "github.com/wacore/wacore/util/log"
)

// EventHandler receives every event emitted on the bus.
type EventHandler func(evt interface{})
type nodeHandler func(node *binary.Node)

var nextHandlerID uint32

type wrappedEventHandler struct {
	fn EventHandler
	id uint32
}

// Decryptor is the externally-supplied decryption collaborator: the Signal
// double-ratchet / group-cipher logic that turns an <enc> child into
// plaintext message content.
type Decryptor interface {
	Decrypt(ctx context.Context, node *binary.Node, info *types.MessageInfo) (*types.MessageContent, error)
}

// SessionStore is the external Signal session collaborator used to assert
// sessions and invalidate sender keys when processing retry receipts.
type SessionStore interface {
	AssertSessions(ctx context.Context, jids []types.JID, force bool) error
	InvalidateSenderKey(group, participant types.JID)
}

// Relayer is the external encrypted-send primitive used to resend a message
// after a peer's retry receipt.
type Relayer interface {
	RelayMessage(ctx context.Context, jid types.JID, content *types.MessageContent, messageID types.MessageID, participant types.JID) error
}

// PreKeyUploader replenishes the server's prekey pool.
type PreKeyUploader interface {
	UploadPreKeys(ctx context.Context) error
}

// RetryCounterStore is the externally-owned counter store tracking
// decryption-retry attempts per message ID, so hosts can persist retry
// counts across restarts.
type RetryCounterStore interface {
	Get(id types.MessageID) (count int, ok bool)
	Set(id types.MessageID, count int)
	Delete(id types.MessageID)
}

// Client contains everything necessary to run the inbound pipeline and
// outbound media preparation for one socket instance. Every piece of
// process-wide-looking mutable state (sendActiveReceipts, the call-offer
// cache, recvChats, historyCache, the retry counter map) is owned here, not
// as a package-level singleton, so multiple Clients can coexist.
type Client struct {
	Store store.AuthState
	Log   waLog.Logger

	recvLog waLog.Logger
	sendLog waLog.Logger

	transport     socket.Transport
	transportLock xsync.RBMutex
	transportWait chan struct{}

	Sessions          SessionStore
	Decrypt           Decryptor
	Relay             Relayer
	PreKeys           PreKeyUploader
	AppState          appstate.Resyncer
	Uploader          mediaprep.SlotRequester
	HTTPClient        *http.Client
	GetMessage        func(ctx context.Context, key types.MessageKey) (*types.WebMessage, error)
	OnUnexpectedError func(err error, context string)

	RetryCounters RetryCounterStore

	// TreatCiphertextMessagesAsReal, if true, still emits ciphertext-stub
	// messages to subscribers instead of only driving the retry workflow.
	TreatCiphertextMessagesAsReal bool
	// RetryRequestDelayMs optionally pauses after sending a retry receipt.
	RetryRequestDelayMs int
	// DownloadHistory gates whether history-sync notifications are honored.
	DownloadHistory bool
	// AutoTrustIdentity, if true, makes an untrusted-identity decryption
	// failure additionally emit an implicit IdentityChange event before the
	// retry path. No stored identity or session is cleared either way.
	AutoTrustIdentity bool

	sendActiveReceipts uint32

	ordering *keyedMutex
	retryMu  sync.Mutex

	callOffers *xsync.MapOf[string, *types.CallEvent]

	historyMu    sync.Mutex
	historyCache map[string]struct{}
	recvChats    map[string]types.RecvChatDelta
	historyTimer *time.Timer

	nodeHandlers      *xsync.MapOf[string, nodeHandler]
	handlerQueue      chan *binary.Node
	eventHandlers     []wrappedEventHandler
	eventHandlersLock xsync.RBMutex

	uniqueID  string
	idCounter uint32
}

const handlerQueueSize = 2048

// HistoryDebounceWindow is the quiet period the history-sync debounce timer
// waits for before firing a resync.
const HistoryDebounceWindow = 6 * time.Second

// NewClient initializes a new client around an already-authenticated
// AuthState. The logger can be nil, defaulting to a no-op logger.
func NewClient(authState store.AuthState, log waLog.Logger) *Client {
	if log == nil {
		log = waLog.Noop
	}
	uniqueIDPrefix := random.Bytes(2)
	cli := &Client{
		Store:         authState,
		Log:           log,
		recvLog:       log.Sub("Recv"),
		sendLog:       log.Sub("Send"),
		uniqueID:      fmt.Sprintf("%d.%d-", uniqueIDPrefix[0], uniqueIDPrefix[1]),
		transportWait: make(chan struct{}),

		RetryCounters: newMemoryRetryCounterStore(),
		HTTPClient:    &http.Client{},

		ordering:     newKeyedMutex(),
		callOffers:   xsync.NewMapOf[string, *types.CallEvent](),
		historyCache: make(map[string]struct{}),
		recvChats:    make(map[string]types.RecvChatDelta),

		nodeHandlers: xsync.NewMapOfPresized[string, nodeHandler](6),
		handlerQueue: make(chan *binary.Node, handlerQueueSize),

		AutoTrustIdentity: true,
	}
	cli.OnUnexpectedError = func(err error, context string) {
		cli.Log.Errorf("Unexpected error in %s: %v", context, err)
	}
	cli.nodeHandlers.Store("message", cli.handleEncryptedMessage)
	cli.nodeHandlers.Store("receipt", cli.handleReceipt)
	cli.nodeHandlers.Store("call", cli.handleCallEvent)
	cli.nodeHandlers.Store("notification", cli.handleNotification)
	return cli
}

// SetTransport attaches (or replaces) the websocket transport. Production
// callers do this after completing the noise handshake externally.
func (cli *Client) SetTransport(t socket.Transport) {
	cli.transportLock.Lock()
	cli.transport = t
	close(cli.transportWait)
	cli.transportWait = make(chan struct{})
	cli.transportLock.Unlock()
}

// IsConnected reports whether the transport is attached and open.
func (cli *Client) IsConnected() bool {
	t := cli.transportLock.RLock()
	connected := cli.transport != nil && cli.transport.IsOpen()
	cli.transportLock.RUnlock(t)
	return connected
}

func (cli *Client) getOwnJID() types.JID {
	return cli.Store.Me()
}

// SetSendActiveReceipts toggles whether delivered-but-not-yet-read receipts
// get an explicit "inactive" type.
func (cli *Client) SetSendActiveReceipts(active bool) {
	if active {
		atomic.StoreUint32(&cli.sendActiveReceipts, 1)
	} else {
		atomic.StoreUint32(&cli.sendActiveReceipts, 0)
	}
}

func (cli *Client) sendActiveReceiptsEnabled() bool {
	return atomic.LoadUint32(&cli.sendActiveReceipts) == 1
}

// GenerateMessageID mints a fresh opaque stanza ID, unique per Client instance.
func (cli *Client) GenerateMessageID() types.MessageID {
	id := atomic.AddUint32(&cli.idCounter, 1)
	return fmt.Sprintf("%s%d", cli.uniqueID, id)
}

// AddEventHandler registers a new function to receive all events emitted by
// this client, returning a handle for RemoveEventHandler.
func (cli *Client) AddEventHandler(handler EventHandler) uint32 {
	nextID := atomic.AddUint32(&nextHandlerID, 1)
	cli.eventHandlersLock.Lock()
	cli.eventHandlers = append(cli.eventHandlers, wrappedEventHandler{handler, nextID})
	cli.eventHandlersLock.Unlock()
	return nextID
}

// RemoveEventHandler removes a previously registered event handler. Do not
// call this from inside an event handler synchronously — the dispatcher
// holds a read lock on the handler list and this wants a write lock; run it
// in a goroutine instead.
func (cli *Client) RemoveEventHandler(id uint32) bool {
	cli.eventHandlersLock.Lock()
	defer cli.eventHandlersLock.Unlock()
	for index := range cli.eventHandlers {
		if cli.eventHandlers[index].id == id {
			cli.eventHandlers = append(cli.eventHandlers[:index], cli.eventHandlers[index+1:]...)
			return true
		}
	}
	return false
}

func (cli *Client) dispatchEvent(evt interface{}) {
	t := cli.eventHandlersLock.RLock()
	defer func() {
		cli.eventHandlersLock.RUnlock(t)
		if err := recover(); err != nil {
			cli.Log.Errorf("Event handler panicked while handling a %T: %v\n%s", evt, err, debug.Stack())
		}
	}()
	for _, handler := range cli.eventHandlers {
		handler.fn(evt)
	}
}

// sendNode is a fire-and-forget stanza write. A write attempted after the
// transport closes is dropped with a debug log, never propagated as an
// exception.
func (cli *Client) sendNode(node binary.Node) error {
	t := cli.transportLock.RLock()
	transport := cli.transport
	cli.transportLock.RUnlock(t)
	if transport == nil || !transport.IsOpen() {
		cli.Log.Debugf("Dropping send of %s: transport closed", node.Tag)
		return nil
	}
	cli.sendLog.Debugf("%s", node.XMLString())
	return transport.SendNode(context.Background(), node)
}

// HandleFrame routes one decoded inbound frame to its node handler via the
// bounded handler queue shared by all tags, preserving arrival order while
// the queue has room.
func (cli *Client) HandleFrame(node *binary.Node) {
	if _, ok := cli.nodeHandlers.Load(node.Tag); ok {
		select {
		case cli.handlerQueue <- node:
		default:
			cli.Log.Warnf("Handler queue is full, message ordering is no longer guaranteed")
			go func() { cli.handlerQueue <- node }()
		}
	} else {
		cli.Log.Debugf("Didn't handle node %s", node.Tag)
	}
}

// HandlerQueueLoop drains the handler queue until ctx is done. Run it once
// per connected session, e.g. `go cli.HandlerQueueLoop(ctx)` after SetTransport.
func (cli *Client) HandlerQueueLoop(ctx context.Context) {
	cli.Log.Debugf("Starting handler queue loop")
	for {
		select {
		case node := <-cli.handlerQueue:
			f, ok := cli.nodeHandlers.Load(node.Tag)
			if ok {
				func() {
					defer func() {
						if err := recover(); err != nil {
							cli.OnUnexpectedError(fmt.Errorf("panic: %v", err), "handler queue: "+node.Tag)
						}
					}()
					f(node)
				}()
			}
		case <-ctx.Done():
			cli.Log.Debugf("Closing handler queue loop")
			return
		}
	}
}
