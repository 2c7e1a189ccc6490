// Package certwatch implements TLS certificate hot reload for the webhook
// server: watching the Kubernetes secret-mount directory for the atomic
// "..data" symlink swap and reloading the certificate/key pair without a
// process restart, in the fsnotify watch-loop style of
// projectcontour-contour/cmd/contour/filewatcher.go.
package certwatch

import (
	"crypto/tls"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"
)

// dataSwapName is the name fsnotify reports for the symlink Kubernetes
// atomically repoints whenever a mounted Secret's contents change.
const dataSwapName = "..data"

// Watcher serves the current certificate/key pair found in a directory,
// reloading it whenever the directory's "..data" symlink is swapped.
type Watcher struct {
	log logr.Logger

	dir      string
	certFile string
	keyFile  string

	mu   sync.RWMutex
	cert *tls.Certificate
}

// New loads the initial certificate from dir/certFile and dir/keyFile and
// starts watching dir for subsequent swaps. The returned Watcher's
// GetCertificate method is suitable for tls.Config.GetCertificate.
func New(log logr.Logger, dir, certFile, keyFile string) (*Watcher, error) {
	w := &Watcher{
		log:      log,
		dir:      dir,
		certFile: certFile,
		keyFile:  keyFile,
	}

	if err := w.reload(); err != nil {
		return nil, fmt.Errorf("loading initial certificate: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating filesystem watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	go w.run(watcher)

	return w, nil
}

func (w *Watcher) run(watcher *fsnotify.Watcher) {
	defer watcher.Close()
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != dataSwapName {
				continue
			}
			if err := w.reload(); err != nil {
				w.log.Error(err, "failed to reload TLS certificate after filesystem event")
			} else {
				w.log.Info("reloaded TLS certificate")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.log.Error(err, "error watching TLS folder")
		}
	}
}

func (w *Watcher) reload() error {
	cert, err := tls.LoadX509KeyPair(
		filepath.Join(w.dir, w.certFile),
		filepath.Join(w.dir, w.keyFile),
	)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.cert = &cert
	w.mu.Unlock()
	return nil
}

// GetCertificate implements tls.Config.GetCertificate. This webhook serves
// exactly one certificate, so it ignores the ClientHello entirely.
func (w *Watcher) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cert, nil
}
