package mailer

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"io"
	"math/big"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureBackend struct {
	mu       sync.Mutex
	from     string
	rcpts    []string
	data     string
	username string
	password string
	overTLS  bool

	// accepted credentials; empty means AUTH is not offered
	wantUser string
	wantPass string
}

func (b *captureBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	if b.wantUser != "" {
		return &authCaptureSession{captureSession{b: b, conn: c}}, nil
	}
	return &captureSession{b: b, conn: c}, nil
}

type captureSession struct {
	b    *captureBackend
	conn *smtp.Conn
}

type authCaptureSession struct{ captureSession }

func (s *authCaptureSession) AuthMechanisms() []string { return []string{sasl.Plain} }

func (s *authCaptureSession) Auth(mech string) (sasl.Server, error) {
	return sasl.NewPlainServer(func(_, username, password string) error {
		if username != s.b.wantUser || password != s.b.wantPass {
			return errors.New("invalid credentials")
		}
		s.b.mu.Lock()
		s.b.username, s.b.password = username, password
		s.b.mu.Unlock()
		return nil
	}), nil
}

func (s *captureSession) Reset()        {}
func (s *captureSession) Logout() error { return nil }

func (s *captureSession) Mail(from string, _ *smtp.MailOptions) error {
	_, tlsOK := s.conn.TLSConnectionState()
	s.b.mu.Lock()
	s.b.from = from
	s.b.overTLS = tlsOK
	s.b.mu.Unlock()
	return nil
}

func (s *captureSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.b.mu.Lock()
	s.b.rcpts = append(s.b.rcpts, to)
	s.b.mu.Unlock()
	return nil
}

func (s *captureSession) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.b.mu.Lock()
	s.b.data = string(raw)
	s.b.mu.Unlock()
	return nil
}

func startSMTPServer(t *testing.T) (*captureBackend, string, int) {
	t.Helper()
	be := &captureBackend{}
	host, port := serveSMTP(t, be, nil)
	return be, host, port
}

func serveSMTP(t *testing.T, be *captureBackend, tlsCfg *tls.Config) (string, int) {
	t.Helper()

	srv := smtp.NewServer(be)
	srv.Domain = "localhost"
	srv.ReadTimeout = 5 * time.Second
	srv.WriteTimeout = 5 * time.Second
	srv.TLSConfig = tlsCfg

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(l) }()
	t.Cleanup(func() { _ = srv.Close() })

	addr := l.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

// selfSignedTLS returns a server config for 127.0.0.1 and a client config
// trusting it.
func selfSignedTLS(t *testing.T) (server, client *tls.Config) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "127.0.0.1"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	pool := x509.NewCertPool()
	pool.AddCert(cert)

	server = &tls.Config{Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key}}}
	client = &tls.Config{RootCAs: pool, ServerName: "127.0.0.1"}
	return server, client
}

func TestSMTPTransportSend(t *testing.T) {
	be, host, port := startSMTPServer(t)

	tr := NewSMTPTransport(SMTPOpts{Host: host, Port: port, HELO: "caleslawncare.test", Timeout: 5 * time.Second})
	email := testEmail()
	email.Subject = "New Quote Request from José Núñez"
	email.HTML = `<p style="color:#2d5016">Lawn mowing</p>`

	id, err := tr.Send(context.Background(), email)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	be.mu.Lock()
	defer be.mu.Unlock()

	assert.Equal(t, "onboarding@resend.dev", be.from)
	assert.Equal(t, []string{"owner@example.com"}, be.rcpts)
	assert.Contains(t, be.data, "Message-ID: <"+id+"@caleslawncare.test>")
	assert.Contains(t, be.data, `Content-Type: text/html; charset="utf-8"`)
	assert.Contains(t, be.data, "Subject: =?utf-8?q?")
	assert.True(t, strings.Contains(be.data, "color:#2d5016") || strings.Contains(be.data, "color=3D"))
}

func TestSMTPTransportRejectsBadFrom(t *testing.T) {
	tr := NewSMTPTransport(SMTPOpts{Host: "127.0.0.1", Port: 1})
	email := testEmail()
	email.From = "not an address"

	_, err := tr.Send(context.Background(), email)
	require.Error(t, err)
}

func TestSMTPTransportConnectFailure(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	tr := NewSMTPTransport(SMTPOpts{Host: "127.0.0.1", Port: port, Timeout: time.Second})
	_, err = tr.Send(context.Background(), testEmail())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp: connect")
}

func TestSMTPTransportStartTLSAndAuth(t *testing.T) {
	serverTLS, clientTLS := selfSignedTLS(t)
	be := &captureBackend{wantUser: "quotes@caleslawncare.test", wantPass: "s3cret"}
	host, port := serveSMTP(t, be, serverTLS)

	tr := NewSMTPTransport(SMTPOpts{
		Host:      host,
		Port:      port,
		Username:  "quotes@caleslawncare.test",
		Password:  "s3cret",
		StartTLS:  true,
		HELO:      "caleslawncare.test",
		Timeout:   5 * time.Second,
		TLSConfig: clientTLS,
	})

	id, err := tr.Send(context.Background(), testEmail())
	require.NoError(t, err)

	be.mu.Lock()
	defer be.mu.Unlock()

	assert.True(t, be.overTLS, "message submitted after STARTTLS")
	assert.Equal(t, "quotes@caleslawncare.test", be.username)
	assert.Equal(t, "s3cret", be.password)
	assert.Equal(t, []string{"owner@example.com"}, be.rcpts)
	assert.Contains(t, be.data, "Message-ID: <"+id+"@caleslawncare.test>")
}

func TestSMTPTransportRejectedCredentials(t *testing.T) {
	serverTLS, clientTLS := selfSignedTLS(t)
	be := &captureBackend{wantUser: "quotes@caleslawncare.test", wantPass: "s3cret"}
	host, port := serveSMTP(t, be, serverTLS)

	tr := NewSMTPTransport(SMTPOpts{
		Host: host, Port: port, Username: "quotes@caleslawncare.test", Password: "wrong",
		StartTLS: true, Timeout: 5 * time.Second, TLSConfig: clientTLS,
	})

	_, err := tr.Send(context.Background(), testEmail())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp: AUTH")

	be.mu.Lock()
	defer be.mu.Unlock()
	assert.Empty(t, be.data)
}

func TestSMTPTransportStartTLSUnsupported(t *testing.T) {
	_, host, port := startSMTPServer(t)

	tr := NewSMTPTransport(SMTPOpts{Host: host, Port: port, StartTLS: true, Timeout: 5 * time.Second})
	_, err := tr.Send(context.Background(), testEmail())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp: STARTTLS")
}
