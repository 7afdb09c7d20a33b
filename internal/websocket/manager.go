package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type ClientMessage struct {
	Client  *Client
	Message []byte
}

// Manager tracks the connected UI clients and fans messages out to them.
type Manager struct {
	clients        map[string]*Client
	userIndex      map[string]map[string]bool
	clientsMutex   sync.RWMutex
	Register       chan *Client
	Unregister     chan *Client
	HandleMessage  chan *ClientMessage
	maxConnPerUser int
	writeWait      time.Duration
	pongWait       time.Duration
	pingPeriod     time.Duration
	maxMessageSize int64
	messageHandler MessageHandler
	logger         zerolog.Logger
	done           chan struct{}
	shutdownOnce   sync.Once
}

type MessageHandler interface {
	HandleWebSocketMessage(client *Client, msg *Message) error
}

type Options struct {
	MaxConnPerUser int
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
}

func NewManager(opts Options, logger zerolog.Logger) *Manager {
	return &Manager{
		clients:        make(map[string]*Client),
		userIndex:      make(map[string]map[string]bool),
		Register:       make(chan *Client),
		Unregister:     make(chan *Client),
		HandleMessage:  make(chan *ClientMessage),
		maxConnPerUser: opts.MaxConnPerUser,
		writeWait:      opts.WriteWait,
		pongWait:       opts.PongWait,
		pingPeriod:     opts.PingPeriod,
		maxMessageSize: opts.MaxMessageSize,
		logger:         logger.With().Str("component", "websocket").Logger(),
		done:           make(chan struct{}),
	}
}

func (m *Manager) SetMessageHandler(handler MessageHandler) {
	m.messageHandler = handler
}

// Run serves registrations and inbound messages until Shutdown is called.
func (m *Manager) Run() {
	for {
		select {
		case <-m.done:
			m.closeAll()
			return

		case client := <-m.Register:
			m.registerClient(client)

		case client := <-m.Unregister:
			m.unregisterClient(client)

		case clientMsg := <-m.HandleMessage:
			m.processMessage(clientMsg)
		}
	}
}

// Shutdown stops Run and closes every client's send channel.
func (m *Manager) Shutdown() {
	m.shutdownOnce.Do(func() { close(m.done) })
}

func (m *Manager) Done() <-chan struct{} {
	return m.done
}

func (m *Manager) registerClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if m.userIndex[client.UserID] == nil {
		m.userIndex[client.UserID] = make(map[string]bool)
	}

	if m.maxConnPerUser > 0 && len(m.userIndex[client.UserID]) >= m.maxConnPerUser {
		m.logger.Warn().Str("user_id", client.UserID).Msg("max connections reached")
		close(client.Send)
		return
	}

	m.clients[client.ID] = client
	m.userIndex[client.UserID][client.ID] = true

	m.logger.Info().
		Str("client_id", client.ID).
		Str("user_id", client.UserID).
		Msg("client registered")
}

func (m *Manager) unregisterClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if _, ok := m.clients[client.ID]; ok {
		delete(m.clients, client.ID)
		delete(m.userIndex[client.UserID], client.ID)

		if len(m.userIndex[client.UserID]) == 0 {
			delete(m.userIndex, client.UserID)
		}

		close(client.Send)
		m.logger.Info().Str("client_id", client.ID).Msg("client unregistered")
	}
}

func (m *Manager) closeAll() {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	for id, client := range m.clients {
		close(client.Send)
		delete(m.clients, id)
	}
	m.userIndex = make(map[string]map[string]bool)
}

func (m *Manager) processMessage(clientMsg *ClientMessage) {
	var msg Message
	if err := json.Unmarshal(clientMsg.Message, &msg); err != nil {
		m.logger.Warn().Err(err).Msg("failed to unmarshal message")
		return
	}

	if m.messageHandler != nil {
		if err := m.messageHandler.HandleWebSocketMessage(clientMsg.Client, &msg); err != nil {
			m.logger.Error().Err(err).Str("type", string(msg.Type)).Msg("failed to handle message")
		}
	}
}

// Broadcast sends message to every connected client.
func (m *Manager) Broadcast(message *Message) error {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	for clientID, client := range m.clients {
		m.deliver(clientID, client, messageBytes)
	}
	return nil
}

func (m *Manager) deliver(clientID string, client *Client, messageBytes []byte) {
	select {
	case client.Send <- messageBytes:
	default:
		m.logger.Warn().Str("client_id", clientID).Msg("send buffer full, closing connection")
		// Unregister takes the write lock; hand it off so the read lock held
		// by the caller is released first.
		go m.unregister(client)
	}
}

func (m *Manager) unregister(client *Client) {
	select {
	case m.Unregister <- client:
	case <-m.done:
	}
}

func (m *Manager) SendToClient(clientID string, message *Message) error {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	client, exists := m.clients[clientID]
	if !exists {
		return nil
	}

	select {
	case client.Send <- messageBytes:
	default:
		m.logger.Warn().Str("client_id", clientID).Msg("send buffer full")
	}
	return nil
}

func (m *Manager) ClientCount() int {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()
	return len(m.clients)
}
