package firestore

import (
	"context"

	gcfirestore "cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Client struct {
	FS *gcfirestore.Client
}

// New opens Firestore through the Firebase admin SDK. An empty
// credentialsFile falls back to application default credentials.
func New(ctx context.Context, projectID, credentialsFile string) (*Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	var conf *firebase.Config
	if projectID != "" {
		conf = &firebase.Config{ProjectID: projectID}
	}
	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, err
	}
	fs, err := app.Firestore(ctx)
	if err != nil {
		return nil, err
	}
	return &Client{FS: fs}, nil
}

// Ping reads a document that need not exist; only transport errors count.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.FS.Collection("dogAvailability").Doc("_ping").Get(ctx)
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

func (c *Client) Close() error {
	return c.FS.Close()
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}
