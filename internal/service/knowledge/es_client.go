package knowledge

import (
	"bytes"
	"context"
	"io"

	"github.com/elastic/go-elasticsearch/v8"
)

// ESSearcher Elasticsearch 搜索接口，用于抽象 ES 客户端
type ESSearcher interface {
	DoSearch(ctx context.Context, index string, queryJSON []byte) (*ESResponse, error)
}

// ESResponse Elasticsearch 搜索响应
type ESResponse struct {
	IsError bool
	Body    io.ReadCloser
	String  string
}

// realESSearcher 真实 ES 客户端的适配器
type realESSearcher struct {
	client *elasticsearch.Client
}

// NewESSearcher 包装 go-elasticsearch 客户端
func NewESSearcher(client *elasticsearch.Client) ESSearcher {
	return &realESSearcher{client: client}
}

func (r *realESSearcher) DoSearch(ctx context.Context, index string, queryJSON []byte) (*ESResponse, error) {
	res, err := r.client.Search(
		r.client.Search.WithContext(ctx),
		r.client.Search.WithIndex(index),
		r.client.Search.WithBody(bytes.NewReader(queryJSON)),
	)
	if err != nil {
		return nil, err
	}
	return &ESResponse{
		IsError: res.IsError(),
		Body:    res.Body,
		String:  res.String(),
	}, nil
}

// NewESClient 创建 ES8 客户端
func NewESClient(host, username, password string) (*elasticsearch.Client, error) {
	return elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{host},
		Username:  username,
		Password:  password,
	})
}
