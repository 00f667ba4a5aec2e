package sse

import (
	"encoding/json"
	"log"
	"sync"
)

// Event represents a Server-Sent Event.
type Event struct {
	EventType string `json:"event"`
	Data      string `json:"data"`
}

// Client represents a connected SSE client.
type Client struct {
	ID     string
	UserID string
	Events chan Event
}

// Hub manages all SSE client connections.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// GlobalHub is the singleton SSE Hub instance.
var GlobalHub = NewHub()

// NewHub creates a new SSE Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

// Register adds a new client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	log.Printf("[SSE] Client registered: id=%s user=%s (total: %d)", client.ID, client.UserID, len(h.clients))
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[clientID]; ok {
		close(client.Events)
		delete(h.clients, clientID)
		log.Printf("[SSE] Client unregistered: id=%s (total: %d)", clientID, len(h.clients))
	}
}

// Broadcast sends an event to all connected clients.
func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.Events <- event:
		default:
			log.Printf("[SSE] Client %s buffer full, skipping event", client.ID)
		}
	}
}

// PublishDispatchCompleted broadcasts a finalized dispatch to all clients.
func PublishDispatchCompleted(documentID, containerID, status string) {
	payload, _ := json.Marshal(map[string]string{
		"document_id":  documentID,
		"container_id": containerID,
		"status":       status,
	})
	GlobalHub.Broadcast(Event{
		EventType: "dispatch_completed",
		Data:      string(payload),
	})
	log.Printf("[SSE] Published dispatch_completed: document=%s status=%s", documentID, status)
}

// PublishContainerUpdate broadcasts container membership changes (documents
// assigned, moved or reordered).
func PublishContainerUpdate(containerID, action string) {
	payload, _ := json.Marshal(map[string]string{
		"container_id": containerID,
		"action":       action,
	})
	GlobalHub.Broadcast(Event{
		EventType: "container_update",
		Data:      string(payload),
	})
}

// PublishUnitReceived notifies connected clients of a newly registered unit.
func PublishUnitReceived(unitCode, productID, locationID string) {
	payload, _ := json.Marshal(map[string]string{
		"unit_code":   unitCode,
		"product_id":  productID,
		"location_id": locationID,
	})
	GlobalHub.Broadcast(Event{
		EventType: "unit_received",
		Data:      string(payload),
	})
}
