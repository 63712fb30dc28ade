/*
Package cloudflare stores images in Cloudflare Images and serves their
renditions from the image delivery network.

Existence checks and deletes go through the management API with
cloudflare-go. Uploads are posted by hand, since the library's upload
parameters cannot set a custom image ID.
*/
package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	cf "github.com/cloudflare/cloudflare-go"
	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	"github.com/xraynetwork/imgcdn/pkg/http/httperror"
	"github.com/xraynetwork/imgcdn/pkg/store"
)

const (
	DefaultAPIURL      = "https://api.cloudflare.com/client/v4"
	DefaultDeliveryURL = "https://imagedelivery.net"

	// Returned by the upload endpoint when the ID is taken.
	codeAlreadyExists = 5409
)

type Config struct {
	AccountID   string
	AccountHash string
	APIToken    string
	APIURL      string
	DeliveryURL string
	// Client is used for every request; nil means http.DefaultClient.
	Client *http.Client
	Logger log.Logger
}

type Store struct {
	api         *cf.API
	account     *cf.ResourceContainer
	accountHash string
	token       string
	uploadURL   string
	deliveryURL string
	client      *http.Client
	logger      log.Logger
}

var _ store.Store = &Store{}
var _ store.Deleter = &Store{}

func New(config Config) (*Store, error) {
	if config.AccountID == "" || config.AccountHash == "" {
		return nil, errors.New("cloudflare account ID and hash are required")
	}
	if config.APIURL == "" {
		config.APIURL = DefaultAPIURL
	}
	if config.DeliveryURL == "" {
		config.DeliveryURL = DefaultDeliveryURL
	}
	if config.Client == nil {
		config.Client = http.DefaultClient
	}
	if config.Logger == nil {
		config.Logger = log.NewNopLogger()
	}
	apiURL := strings.TrimRight(config.APIURL, "/")
	api, err := cf.NewWithAPIToken(config.APIToken, cf.BaseURL(apiURL), cf.HTTPClient(config.Client))
	if err != nil {
		return nil, errors.Wrap(err, "creating cloudflare API client")
	}
	return &Store{
		api:         api,
		account:     cf.AccountIdentifier(config.AccountID),
		accountHash: config.AccountHash,
		token:       config.APIToken,
		uploadURL:   apiURL + "/accounts/" + config.AccountID + "/images/v1",
		deliveryURL: strings.TrimRight(config.DeliveryURL, "/"),
		client:      config.Client,
		logger:      config.Logger,
	}, nil
}

// Exists asks the management API rather than the delivery network,
// whose edge caches a 404 for some time after the upload.
func (s *Store) Exists(ctx context.Context, key store.Key) (bool, error) {
	_, err := s.api.GetImage(ctx, s.account, key.ID())
	if err == nil {
		return true, nil
	}
	var notFound *cf.NotFoundError
	if errors.As(err, &notFound) {
		return false, nil
	}
	return false, errors.Wrapf(err, "looking up image %s", key)
}

func (s *Store) Upload(ctx context.Context, key store.Key, image []byte) error {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	file, err := form.CreateFormFile("file", key.Fingerprint)
	if err == nil {
		_, err = file.Write(image)
	}
	if err == nil {
		err = form.WriteField("id", key.ID())
	}
	if err == nil {
		err = form.Close()
	}
	if err != nil {
		return errors.Wrap(err, "encoding upload form")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.uploadURL, &body)
	if err != nil {
		return errors.Wrap(err, "constructing upload request")
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "uploading image %s", key)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	apiErr := httperror.FromResponse(resp)
	if resp.StatusCode == http.StatusConflict && alreadyExists(apiErr.Body) {
		s.logger.Log("info", "image already uploaded", "key", key)
		return nil
	}
	return errors.Wrapf(apiErr, "uploading image %s", key)
}

func alreadyExists(body string) bool {
	var r cf.Response
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return false
	}
	for _, e := range r.Errors {
		if e.Code == codeAlreadyExists {
			return true
		}
	}
	return false
}

// Serve fetches a rendition from the delivery network. Both 2xx and
// 304 Not Modified are renditions; anything else is an error.
func (s *Store) Serve(ctx context.Context, key store.Key, size int, header http.Header) (*store.Rendition, error) {
	url := strings.Join([]string{s.deliveryURL, s.accountHash, key.ID(), strconv.Itoa(size)}, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "constructing delivery request")
	}
	for name, values := range header {
		if forwardHeader(name) {
			req.Header[name] = append([]string(nil), values...)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching rendition %s/%d", key, size)
	}
	if (resp.StatusCode >= 200 && resp.StatusCode < 300) || resp.StatusCode == http.StatusNotModified {
		return &store.Rendition{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       resp.Body,
		}, nil
	}
	defer resp.Body.Close()
	apiErr := httperror.FromResponse(resp)
	return nil, errors.Wrapf(store.ErrRenditionUnavailable, "rendition %s/%d: %s", key, size, apiErr)
}

// hop-by-hop headers and those describing the caller's own connection
// are not passed on.
var skipHeaders = map[string]bool{
	"Connection":        true,
	"Keep-Alive":        true,
	"Proxy-Connection":  true,
	"Te":                true,
	"Trailer":           true,
	"Transfer-Encoding": true,
	"Upgrade":           true,
	"Host":              true,
	"Content-Length":    true,
}

func forwardHeader(name string) bool {
	return !skipHeaders[http.CanonicalHeaderKey(name)]
}

func (s *Store) Delete(ctx context.Context, key store.Key) error {
	if err := s.api.DeleteImage(ctx, s.account, key.ID()); err != nil {
		return errors.Wrapf(err, "deleting image %s", key)
	}
	return nil
}
