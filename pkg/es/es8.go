package es

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/CharellKing/ela-move/config"
	elasticsearch8 "github.com/elastic/go-elasticsearch/v8"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

type V8 struct {
	*elasticsearch8.Client
	ClusterVersion string
	Addresses      []string
	User           string
	Password       string
}

func NewESV8(esConfig *config.ESConfig, clusterVersion string) (*V8, error) {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true,
		},
	}

	client, err := elasticsearch8.NewClient(elasticsearch8.Config{
		Addresses: esConfig.Addresses,
		Username:  esConfig.User,
		Password:  esConfig.Password,
		Transport: transport,
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return &V8{
		Client:         client,
		ClusterVersion: clusterVersion,
		Addresses:      esConfig.Addresses,
		User:           esConfig.User,
		Password:       esConfig.Password,
	}, nil
}

func (es *V8) GetClusterVersion() string {
	return es.ClusterVersion
}

func (es *V8) GetIndexes(pattern string) ([]string, error) {
	res, err := es.Client.Cat.Indices(
		es.Client.Cat.Indices.WithIndex(pattern),
		es.Client.Cat.Indices.WithH("index"),
		es.Client.Cat.Indices.WithS("index"),
	)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	defer func() {
		_ = res.Body.Close()
	}()

	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	if res.StatusCode != http.StatusOK {
		return nil, formatError(res.StatusCode, res.Body)
	}

	var indices []string
	scanner := bufio.NewScanner(res.Body)
	for scanner.Scan() {
		value := strings.TrimSpace(scanner.Text())
		if value == "" {
			continue
		}
		indices = append(indices, value)
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	return indices, nil
}

func (es *V8) IndexExisted(indexName string) (bool, error) {
	res, err := es.Client.Indices.Exists([]string{indexName})
	if err != nil {
		return false, errors.WithStack(err)
	}

	defer func() {
		_ = res.Body.Close()
	}()

	if res.StatusCode == http.StatusNotFound {
		return false, nil
	}

	if res.StatusCode != http.StatusOK {
		return false, formatError(res.StatusCode, res.Body)
	}

	return true, nil
}

func (es *V8) Count(ctx context.Context, index string) (uint64, error) {
	res, err := es.Client.Count(
		es.Client.Count.WithContext(ctx),
		es.Client.Count.WithIndex(index),
	)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	defer func() {
		_ = res.Body.Close()
	}()

	if res.StatusCode != http.StatusOK {
		return 0, formatError(res.StatusCode, res.Body)
	}

	var countResult map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&countResult); err != nil {
		return 0, errors.WithStack(err)
	}

	countValue, ok := countResult["count"]
	if !ok {
		return 0, fmt.Errorf("count missing in response for index %s", index)
	}

	count, err := cast.ToUint64E(countValue)
	if err != nil {
		return 0, fmt.Errorf("malformed count for index %s: %v", index, err)
	}
	return count, nil
}

func (es *V8) SetIndexReadOnly(ctx context.Context, index string) error {
	settingsBytes, _ := json.Marshal(map[string]interface{}{
		"index": map[string]interface{}{
			"blocks": map[string]interface{}{
				"write": true,
			},
		},
	})

	res, err := es.Client.Indices.PutSettings(
		bytes.NewReader(settingsBytes),
		es.Client.Indices.PutSettings.WithContext(ctx),
		es.Client.Indices.PutSettings.WithIndex(index),
	)
	if err != nil {
		return errors.WithStack(err)
	}

	defer func() {
		_ = res.Body.Close()
	}()

	if res.StatusCode != http.StatusOK {
		return formatError(res.StatusCode, res.Body)
	}

	return nil
}

func (es *V8) ReindexFrom(ctx context.Context, remote *RemoteSource, index string) error {
	bodyBytes, _ := json.Marshal(map[string]interface{}{
		"source": map[string]interface{}{
			"remote": map[string]interface{}{
				"host":     remote.Host,
				"username": remote.User,
				"password": remote.Password,
			},
			"index": remote.Index,
		},
		"dest": map[string]interface{}{
			"index": index,
		},
	})

	res, err := es.Client.Reindex(
		bytes.NewReader(bodyBytes),
		es.Client.Reindex.WithContext(ctx),
		es.Client.Reindex.WithWaitForCompletion(true),
	)
	if err != nil {
		return errors.WithStack(err)
	}

	defer func() {
		_ = res.Body.Close()
	}()

	if res.StatusCode != http.StatusOK {
		return formatError(res.StatusCode, res.Body)
	}

	return nil
}

func (es *V8) Flush(ctx context.Context, index string) error {
	res, err := es.Client.Indices.Flush(
		es.Client.Indices.Flush.WithContext(ctx),
		es.Client.Indices.Flush.WithIndex(index),
	)
	if err != nil {
		return errors.WithStack(err)
	}

	defer func() {
		_ = res.Body.Close()
	}()

	if res.StatusCode != http.StatusOK {
		return formatError(res.StatusCode, res.Body)
	}

	return nil
}

func (es *V8) DeleteIndex(index string) error {
	res, err := es.Client.Indices.Delete([]string{index})
	if err != nil {
		return errors.WithStack(err)
	}

	defer func() {
		_ = res.Body.Close()
	}()

	if res.StatusCode != http.StatusOK {
		return formatError(res.StatusCode, res.Body)
	}

	return nil
}

func (es *V8) CloseIndex(ctx context.Context, index string) error {
	res, err := es.Client.Indices.Close(
		[]string{index},
		es.Client.Indices.Close.WithContext(ctx),
	)
	if err != nil {
		return errors.WithStack(err)
	}

	defer func() {
		_ = res.Body.Close()
	}()

	if res.StatusCode != http.StatusOK {
		return formatError(res.StatusCode, res.Body)
	}

	return nil
}

func (es *V8) GetAddresses() []string {
	return es.Addresses
}

func (es *V8) GetUser() string {
	return es.User
}

func (es *V8) GetPassword() string {
	return es.Password
}
