package ftpwalk

import (
	"io"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"cagedfetch/pkg/errors"
)

// Session is the stateful remote session the walker and controller operate
// on. The current working directory is shared state: every ChangeDir must
// be paired with a ChangeDirUp before moving to a sibling.
type Session interface {
	ChangeDir(name string) error
	ChangeDirUp() error
	List() ([]string, error)
	Retrieve(name string, sink io.Writer) error
	Quit() error
}

// ftpSession adapts a jlaffaye/ftp server connection to Session.
type ftpSession struct {
	conn *ftp.ServerConn
}

// Dial connects to host and performs an anonymous login. Host may be given
// with or without a port; port 21 is assumed when absent.
func Dial(host string, timeout time.Duration) (Session, error) {
	addr := host
	if !strings.Contains(addr, ":") {
		addr += ":21"
	}

	conn, err := ftp.Dial(addr, ftp.DialWithTimeout(timeout))
	if err != nil {
		return nil, errors.Transport("connect", host, err)
	}

	if err := conn.Login("anonymous", "anonymous"); err != nil {
		_ = conn.Quit()
		return nil, errors.Transport("login", host, err)
	}

	return &ftpSession{conn: conn}, nil
}

func (s *ftpSession) ChangeDir(name string) error {
	if err := s.conn.ChangeDir(name); err != nil {
		return errors.Transport("cd", name, err)
	}
	return nil
}

func (s *ftpSession) ChangeDirUp() error {
	if err := s.conn.ChangeDirToParent(); err != nil {
		return errors.Transport("cd ..", "", err)
	}
	return nil
}

func (s *ftpSession) List() ([]string, error) {
	names, err := s.conn.NameList("")
	if err != nil {
		return nil, errors.Transport("list", "", err)
	}
	return names, nil
}

func (s *ftpSession) Retrieve(name string, sink io.Writer) error {
	resp, err := s.conn.Retr(name)
	if err != nil {
		return errors.Transport("retrieve", name, err)
	}
	defer resp.Close()

	if _, err := io.Copy(sink, resp); err != nil {
		return errors.Transport("retrieve", name, err)
	}
	return nil
}

func (s *ftpSession) Quit() error {
	return s.conn.Quit()
}
