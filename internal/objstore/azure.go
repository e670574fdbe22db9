package objstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// AzureCredentials holds the two equivalent credential shapes for one storage account.
// ConnectionString wins when both are present.
type AzureCredentials struct {
	ConnectionString string
	AccountName      string
	AccountKey       string
	// ServiceURL overrides https://<account>.blob.core.windows.net/ (e.g. Azurite).
	ServiceURL string
}

// Strategy names how a blob client will be built from the credentials.
type Strategy string

const (
	StrategyNone             Strategy = ""
	StrategyConnectionString Strategy = "connection-string"
	StrategySharedKey        Strategy = "shared-key"
)

// Strategy picks the credential strategy from whichever values are present.
func (c AzureCredentials) Strategy() Strategy {
	switch {
	case c.ConnectionString != "":
		return StrategyConnectionString
	case c.AccountName != "" && c.AccountKey != "":
		return StrategySharedKey
	default:
		return StrategyNone
	}
}

// Azure stores objects as block blobs in one container.
type Azure struct {
	client    *azblob.Client
	container string
}

// NewAzureClient builds a blob service client with the selected credential strategy.
// No network call happens here.
func NewAzureClient(creds AzureCredentials) (*azblob.Client, error) {
	switch creds.Strategy() {
	case StrategyConnectionString:
		client, err := azblob.NewClientFromConnectionString(creds.ConnectionString, nil)
		if err != nil {
			return nil, fmt.Errorf("azure client from connection string: %w", err)
		}
		return client, nil
	case StrategySharedKey:
		cred, err := azblob.NewSharedKeyCredential(creds.AccountName, creds.AccountKey)
		if err != nil {
			return nil, fmt.Errorf("azure shared key credential: %w", err)
		}
		serviceURL := creds.ServiceURL
		if serviceURL == "" {
			serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net/", creds.AccountName)
		}
		client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("azure client with shared key: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("azure storage credentials not set: need a connection string or account name and key")
	}
}

// OpenAzure builds a client from creds and binds it to container.
func OpenAzure(creds AzureCredentials, container string) (*Azure, error) {
	client, err := NewAzureClient(creds)
	if err != nil {
		return nil, err
	}
	return NewAzure(client, container), nil
}

// NewAzure binds a blob client to container.
func NewAzure(client *azblob.Client, container string) *Azure {
	return &Azure{client: client, container: container}
}

func (a *Azure) Location() string { return "azure://" + a.container }

// Put uploads data as a block blob; an existing blob is overwritten.
func (a *Azure) Put(ctx context.Context, path string, data []byte) error {
	if _, err := a.client.UploadBuffer(ctx, a.container, path, data, nil); err != nil {
		return fmt.Errorf("upload %s/%s: %w", a.container, path, err)
	}
	return nil
}

func (a *Azure) Get(ctx context.Context, path string) ([]byte, error) {
	resp, err := a.client.DownloadStream(ctx, a.container, path, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, fmt.Errorf("%s/%s: %w", a.container, path, ErrNotFound)
		}
		return nil, fmt.Errorf("download %s/%s: %w", a.container, path, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", a.container, path, err)
	}
	return buf.Bytes(), nil
}

func (a *Azure) List(ctx context.Context, prefix string) ([]string, error) {
	var paths []string
	pager := a.client.NewListBlobsFlatPager(a.container, &azblob.ListBlobsFlatOptions{Prefix: &prefix})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", a.container, prefix, err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name != nil {
				paths = append(paths, *item.Name)
			}
		}
	}
	sort.Strings(paths)
	return paths, nil
}
