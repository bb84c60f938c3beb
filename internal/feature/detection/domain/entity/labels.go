package entity

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// LabelSet はモデルが出力しうる固定のクラス名集合です。
// 大文字小文字を区別せずに照合し、モデル側の表記を正規の名前として返します。
type LabelSet struct {
	names []string
	index map[string]int
}

// NewLabelSet はクラス名の並びからLabelSetを生成します。空行は無視します。
func NewLabelSet(names []string) LabelSet {
	ls := LabelSet{index: make(map[string]int, len(names))}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		key := strings.ToLower(n)
		if _, dup := ls.index[key]; dup {
			continue
		}
		ls.index[key] = len(ls.names)
		ls.names = append(ls.names, n)
	}
	return ls
}

// ParseLabels は1行1クラス名のラベルファイルを読み込みます。
func ParseLabels(r io.Reader) (LabelSet, error) {
	var names []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		names = append(names, line)
	}
	if err := sc.Err(); err != nil {
		return LabelSet{}, fmt.Errorf("failed to read labels: %w", err)
	}
	ls := NewLabelSet(names)
	if ls.Len() == 0 {
		return LabelSet{}, fmt.Errorf("label set is empty")
	}
	return ls, nil
}

// Len はクラス数を返します。
func (ls LabelSet) Len() int { return len(ls.names) }

// Names はクラス名のコピーを返します。
func (ls LabelSet) Names() []string {
	out := make([]string, len(ls.names))
	copy(out, ls.names)
	return out
}

// Name はクラスIDに対応する名前を返します。
func (ls LabelSet) Name(id int) (string, bool) {
	if id < 0 || id >= len(ls.names) {
		return "", false
	}
	return ls.names[id], true
}

// Lookup は名前からクラスIDと正規の名前を返します。
func (ls LabelSet) Lookup(name string) (int, string, bool) {
	id, ok := ls.index[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, "", false
	}
	return id, ls.names[id], true
}

// Contains は名前が（表記そのままで）ラベルセットに含まれるかを返します。
func (ls LabelSet) Contains(name string) bool {
	_, canonical, ok := ls.Lookup(name)
	return ok && canonical == name
}
