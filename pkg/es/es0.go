package es

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/CharellKing/ela-move/config"
	goversion "github.com/hashicorp/go-version"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// RemoteSource names an index on another cluster for a server-side remote
// reindex. Host must be reachable from the destination cluster's nodes,
// not from this process.
type RemoteSource struct {
	Host     string
	User     string
	Password string
	Index    string
}

type ES interface {
	GetClusterVersion() string

	GetIndexes(pattern string) ([]string, error)
	IndexExisted(index string) (bool, error)
	Count(ctx context.Context, index string) (uint64, error)

	SetIndexReadOnly(ctx context.Context, index string) error
	ReindexFrom(ctx context.Context, remote *RemoteSource, index string) error
	Flush(ctx context.Context, index string) error
	DeleteIndex(index string) error
	CloseIndex(ctx context.Context, index string) error

	GetAddresses() []string
	GetUser() string
	GetPassword() string
}

type V0 struct {
	Config *config.ESConfig
}

func NewESV0(esConfig *config.ESConfig) *V0 {
	return &V0{
		Config: esConfig,
	}
}

type clusterInfo struct {
	Name    string `mapstructure:"name"`
	Version struct {
		Number string `mapstructure:"number"`
	} `mapstructure:"version"`
}

// GetES pings the cluster, reads its version and picks the matching client.
func (es *V0) GetES() (ES, error) {
	clusterVersion, err := es.getClusterVersion()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return newES(es.Config, clusterVersion)
}

func (es *V0) getClusterVersion() (string, error) {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true,
		},
	}
	client := &http.Client{Transport: transport}

	req, err := http.NewRequest(http.MethodGet, es.Config.Addresses[0], nil)
	if err != nil {
		return "", errors.WithStack(err)
	}
	if lo.IsNotEmpty(es.Config.User) {
		req.SetBasicAuth(es.Config.User, es.Config.Password)
	}

	res, err := client.Do(req)
	if err != nil {
		return "", errors.WithStack(err)
	}

	defer func() {
		_ = res.Body.Close()
	}()

	if res.StatusCode != http.StatusOK {
		return "", formatError(res.StatusCode, res.Body)
	}

	infoMap := make(map[string]interface{})
	if err := json.NewDecoder(res.Body).Decode(&infoMap); err != nil {
		return "", errors.WithStack(err)
	}

	var info clusterInfo
	if err := mapstructure.Decode(infoMap, &info); err != nil {
		return "", errors.WithStack(err)
	}

	if lo.IsEmpty(info.Version.Number) {
		return "", fmt.Errorf("no version number in cluster info from %s", es.Config.Addresses[0])
	}
	return info.Version.Number, nil
}

var (
	v7Range goversion.Constraints
	v8Range goversion.Constraints
)

func init() {
	v7Range, _ = goversion.NewConstraint(">= 7.0, < 8.0")
	v8Range, _ = goversion.NewConstraint(">= 8.0, < 9.0")
}

func newES(esConfig *config.ESConfig, clusterVersion string) (ES, error) {
	ver, err := goversion.NewVersion(clusterVersion)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if v7Range.Check(ver) {
		return NewESV7(esConfig, clusterVersion)
	}
	if v8Range.Check(ver) {
		return NewESV8(esConfig, clusterVersion)
	}
	return nil, fmt.Errorf("unsupported cluster version: %s", clusterVersion)
}
