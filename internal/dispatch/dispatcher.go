// Package dispatch decouples message delivery from the conversation flow:
// callers enqueue and return immediately, workers own the network I/O.
package dispatch

import (
	"context"
	"hash/fnv"
	"log"
	"sync"
	"time"

	"linkscout/internal/channel"
)

const (
	defaultQueueDepth  = 64
	defaultSendTimeout = 10 * time.Second
)

type message struct {
	chatID string
	text   string
}

// Dispatcher fans outbound messages over a fixed worker pool. A chat ID is
// always routed to the same worker queue, so messages composed for one chat
// are delivered in enqueue order.
type Dispatcher struct {
	channel     channel.Channel
	queues      []chan message
	wg          sync.WaitGroup
	closeOnce   sync.Once
	sendTimeout time.Duration
}

func NewDispatcher(ch channel.Channel, workers int) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	d := &Dispatcher{
		channel:     ch,
		queues:      make([]chan message, workers),
		sendTimeout: defaultSendTimeout,
	}
	for i := range d.queues {
		d.queues[i] = make(chan message, defaultQueueDepth)
		d.wg.Add(1)
		go d.worker(d.queues[i])
	}
	return d
}

func (d *Dispatcher) worker(queue chan message) {
	defer d.wg.Done()
	for msg := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
		err := d.channel.SendText(ctx, msg.chatID, msg.text)
		cancel()
		if err != nil {
			// Delivery failure is logged and dropped: there is no channel
			// to notify the user through, and flow state does not depend
			// on delivery confirmation.
			log.Printf("dispatch delivery failed channel=%s chat_id=%s err=%v", d.channel.Name(), msg.chatID, err)
		}
	}
}

// Send enqueues a message for delivery and never blocks the caller. When
// the target queue is saturated the message is dropped with a log line.
func (d *Dispatcher) Send(chatID, text string) {
	queue := d.queues[queueIndex(chatID, len(d.queues))]
	select {
	case queue <- message{chatID: chatID, text: text}:
	default:
		log.Printf("dispatch queue full, dropping message chat_id=%s chars=%d", chatID, len(text))
	}
}

func queueIndex(chatID string, buckets int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(chatID))
	return int(h.Sum32() % uint32(buckets))
}

// Close drains queued messages and stops the workers.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		for _, queue := range d.queues {
			close(queue)
		}
		d.wg.Wait()
	})
}
