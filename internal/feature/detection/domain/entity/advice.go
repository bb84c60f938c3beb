package entity

// Advice は検出されたクラスに対する手当ての助言です。
type Advice struct {
	Label string // 対象のクラス名
	Text  string // AI生成の助言
}
