// Package server is the optional TCP front-end: it serializes every
// connection's command lines through one TransactionManager, exactly as if
// they had all come from a single script file interleaved by arrival
// order. It is a command interface, not a replication transport — the ten
// sites it drives remain in-process objects inside the one Manager.
package server

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"log"
	"net"
	"sync"

	"github.com/repcrec/repcrec/pkg/script"
	"github.com/repcrec/repcrec/pkg/txn"
	"github.com/repcrec/repcrec/pkg/wire"
)

// ErrServerClosed is returned by Listen after Close has been called.
var ErrServerClosed = errors.New("server: closed")

// Server accepts connections and dispatches each line they send through a
// single shared Manager and Dispatcher.
type Server struct {
	listener net.Listener

	mu         sync.Mutex // guards mgr and dispatcher together
	mgr        *txn.Manager
	dispatcher *script.Dispatcher

	clientsMu sync.Mutex
	clients   map[uint64]net.Conn
	nextID    uint64
	closed    bool
}

// New creates a server driving the given manager. If mgr is nil, a fresh
// one is created.
func New(mgr *txn.Manager) *Server {
	if mgr == nil {
		mgr = txn.NewManager()
	}
	return &Server{
		mgr:        mgr,
		dispatcher: script.NewDispatcher(),
		clients:    make(map[uint64]net.Conn),
	}
}

// Listen opens address and serves connections until Close is called.
func (s *Server) Listen(address string) error {
	if s.isClosed() {
		return ErrServerClosed
	}
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	s.listener = listener
	return s.acceptLoop()
}

func (s *Server) acceptLoop() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.isClosed() {
				return nil
			}
			return err
		}

		s.clientsMu.Lock()
		s.nextID++
		id := s.nextID
		s.clients[id] = conn
		s.clientsMu.Unlock()

		go s.handle(id, conn)
	}
}

func (s *Server) isClosed() bool {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return s.closed
}

// Close stops accepting connections and closes every client.
func (s *Server) Close() error {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	for _, conn := range s.clients {
		conn.Close()
	}
	if s.listener != nil {
		s.listener.Close()
	}
	return nil
}

func (s *Server) removeClient(id uint64) {
	s.clientsMu.Lock()
	delete(s.clients, id)
	s.clientsMu.Unlock()
}

// handle reads length-prefixed, msgpack-encoded CommandMessages off conn
// and replies with the EventMessage each one produced, until the
// connection closes.
func (s *Server) handle(id uint64, conn net.Conn) {
	defer func() {
		conn.Close()
		s.removeClient(id)
	}()

	reader := bufio.NewReader(conn)
	for {
		var length uint32
		if err := binary.Read(reader, binary.BigEndian, &length); err != nil {
			if err != io.EOF {
				log.Printf("server: reading length from client %d: %v", id, err)
			}
			return
		}

		payload := make([]byte, length)
		if _, err := io.ReadFull(reader, payload); err != nil {
			log.Printf("server: reading payload from client %d: %v", id, err)
			return
		}

		var cmdMsg wire.CommandMessage
		if err := wire.Decode(payload, &cmdMsg); err != nil {
			s.reply(conn, wire.NewErrorEventMessage(err))
			continue
		}

		s.reply(conn, s.process(cmdMsg.Line))
	}
}

// process runs one command line through the shared dispatcher and
// manager, holding the lock for the duration — this is what "one Manager,
// single mutex" means in practice.
func (s *Server) process(line string) *wire.EventMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	cmd, err := s.dispatcher.ParseOne(line)
	if err != nil {
		if err == script.ErrBlankOrComment {
			return wire.NewEventMessage(nil)
		}
		return wire.NewErrorEventMessage(err)
	}

	events, err := script.DispatchOne(s.mgr, cmd)
	if err != nil {
		return wire.NewErrorEventMessage(err)
	}
	return wire.NewEventMessage(events)
}

func (s *Server) reply(conn net.Conn, msg *wire.EventMessage) {
	data, err := wire.Encode(msg)
	if err != nil {
		log.Printf("server: encoding reply: %v", err)
		return
	}
	if err := binary.Write(conn, binary.BigEndian, uint32(len(data))); err != nil {
		return
	}
	conn.Write(data)
}
