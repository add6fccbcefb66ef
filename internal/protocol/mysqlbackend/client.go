package mysqlbackend

import (
	"bufio"
	"fmt"
	"net"
	"time"

	"github.com/kvmesh/sidecar/internal/protocol/mysqlwire"
)

// Client is a connection to a single MySQL backend shard: one
// handshake, then any number of COM_QUERY round trips.
type Client struct {
	conn net.Conn
	r    *bufio.Reader
	caps mysqlwire.CapabilityFlags
	seq  byte
}

// Dial connects to addr and completes the v10 handshake, authenticating
// as user/password against db.
func Dial(addr string, timeout time.Duration, user, password, db []byte) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	c := &Client{conn: conn, r: bufio.NewReader(conn)}
	if err := c.handshake(user, password, db); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) handshake(user, password, db []byte) error {
	payload, seq, err := mysqlwire.ReadPacket(c.r)
	if err != nil {
		return err
	}
	hs, err := ParseHandshake(payload)
	if err != nil {
		return err
	}
	if !hs.Capabilities.Has(mysqlwire.ClientProtocol41) {
		return fmt.Errorf("mysqlbackend: backend does not support protocol 4.1")
	}
	c.caps = mysqlwire.BaseClientFlags
	if len(db) > 0 {
		c.caps |= mysqlwire.ClientConnectWithDB
	}

	reply, err := BuildHandshakeResponse(hs, user, password, db)
	if err != nil {
		return err
	}
	if err := mysqlwire.WritePacket(c.conn, reply, seq+1); err != nil {
		return err
	}

	payload, _, err = mysqlwire.ReadPacket(c.r)
	if err != nil {
		return err
	}
	if mysqlwire.IsErr(payload) {
		e, perr := mysqlwire.ParseErrPacket(payload, c.caps)
		if perr != nil {
			return perr
		}
		return &e
	}
	if !mysqlwire.IsOK(payload) {
		return fmt.Errorf("mysqlbackend: unexpected handshake reply")
	}
	c.seq = 0
	return nil
}

// Query issues query as a COM_QUERY and reads back its result set.
func (c *Client) Query(query []byte) (ResultSet, error) {
	c.seq = 0
	payload := make([]byte, 0, len(query)+1)
	payload = append(payload, byte(mysqlwire.ComQuery))
	payload = append(payload, query...)
	if err := mysqlwire.WritePacket(c.conn, payload, c.seq); err != nil {
		return ResultSet{}, err
	}
	return ReadResultSet(c.r, c.caps)
}

// Close sends COM_QUIT and closes the underlying connection.
func (c *Client) Close() error {
	payload := []byte{byte(mysqlwire.ComQuit)}
	_ = mysqlwire.WritePacket(c.conn, payload, 0)
	return c.conn.Close()
}
