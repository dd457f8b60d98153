package config

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"io"
	"io/fs"
	"log"
	"os"

	"github.com/spf13/afero"
)

// Initialize writes a default configuration and host key to dir, keeping any
// files that already exist.
func Initialize(dir string, logger *log.Logger) (*Configuration, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	if err := initializeFs(afero.NewBasePathFs(afero.NewOsFs(), dir), logger); err != nil {
		return nil, err
	}

	return Load(dir)
}

func initializeFs(fsys afero.Fs, logger *log.Logger) error {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	logger.Printf("Writing %s...\n", ConfigurationName)
	if err := writeIfMissing(fsys, ConfigurationName, defaultConfigData, 0600); err != nil {
		return err
	}

	logger.Printf("Writing %s...\n", PrivateKeyName)
	exists, err := afero.Exists(fsys, PrivateKeyName)
	if err != nil {
		return err
	}
	if exists {
		logger.Printf("- %s already exists, skipping\n", PrivateKeyName)
	} else {
		keyPem, err := generateHostKey()
		if err != nil {
			return err
		}
		if err := afero.WriteFile(fsys, PrivateKeyName, keyPem, 0600); err != nil {
			return err
		}
	}

	logger.Printf("Creating %s/...\n", RecordingsDirName)
	return fsys.MkdirAll(RecordingsDirName, 0700)
}

func writeIfMissing(fsys afero.Fs, name string, data []byte, perm fs.FileMode) error {
	fd, err := fsys.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
	if errors.Is(err, fs.ErrExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := fd.Write(data); err != nil {
		fd.Close()
		return err
	}
	return fd.Close()
}

func generateHostKey() ([]byte, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}
