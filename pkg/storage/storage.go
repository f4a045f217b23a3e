// Package storage 线下凭证文件存储
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// ProofStore 凭证文件仓库
// 文件系统通过 afero 抽象，生产环境落本地磁盘，测试用内存文件系统。
type ProofStore struct {
	fs   afero.Fs
	root string
}

// NewProofStore 创建落本地磁盘的凭证仓库
func NewProofStore(root string) *ProofStore {
	return &ProofStore{
		fs:   afero.NewOsFs(),
		root: root,
	}
}

// NewProofStoreWithFs 用指定文件系统创建凭证仓库
func NewProofStoreWithFs(fs afero.Fs, root string) *ProofStore {
	return &ProofStore{
		fs:   fs,
		root: root,
	}
}

// Save 保存凭证文件，返回存储路径
// 落盘文件名由服务端生成，绝不使用上传方提供的名字
func (s *ProofStore) Save(fileName string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("proof file is empty")
	}

	dir := filepath.Join(s.root, time.Now().Format("2006/01"))
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create proof directory error: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	path := filepath.Join(dir, uuid.New().String()+ext)
	if err := afero.WriteFile(s.fs, path, data, 0644); err != nil {
		return "", fmt.Errorf("write proof file error: %w", err)
	}
	return path, nil
}

// Read 读取凭证文件
func (s *ProofStore) Read(path string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read proof file error: %w", err)
	}
	return data, nil
}

// Remove 删除凭证文件，文件不存在不算错误
func (s *ProofStore) Remove(path string) error {
	err := s.fs.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
