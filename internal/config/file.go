package config

import (
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// ApplyFile はTOML設定ファイルを読み込み、既存の設定に上書き適用する
// 環境変数よりファイルの値が優先される
func ApplyFile(cfg *Config, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
	}

	if err := toml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("設定ファイルの解析に失敗: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return nil
}

// FileExists は設定ファイルが存在するかを返す
func FileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
