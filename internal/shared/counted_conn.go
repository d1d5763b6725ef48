package shared

import (
	"net"
	"sync/atomic"
)

// Traffic 累计一组连接的收发字节数。
type Traffic struct {
	Sent     atomic.Uint64
	Received atomic.Uint64
}

// CountedConn 是一个 net.Conn 的包装器，用于原子地统计收发流量。
type CountedConn struct {
	net.Conn
	traffic *Traffic
}

func NewCountedConn(conn net.Conn, t *Traffic) *CountedConn {
	return &CountedConn{Conn: conn, traffic: t}
}

// Read 从底层连接读取数据，并增加接收计数。
func (c *CountedConn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	if n > 0 {
		c.traffic.Received.Add(uint64(n))
	}
	return n, err
}

// Write 将数据写入底层连接，并增加发送计数。
func (c *CountedConn) Write(b []byte) (int, error) {
	n, err := c.Conn.Write(b)
	if n > 0 {
		c.traffic.Sent.Add(uint64(n))
	}
	return n, err
}

type countingListener struct {
	net.Listener
	traffic *Traffic
}

// CountListener wraps every accepted connection in a CountedConn.
func CountListener(l net.Listener, t *Traffic) net.Listener {
	return countingListener{Listener: l, traffic: t}
}

func (l countingListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	return NewCountedConn(conn, l.traffic), nil
}
