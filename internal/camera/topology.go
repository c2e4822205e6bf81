package camera

import (
	"path/filepath"
	"strings"
)

// hwNode はデバイスノードと正規化済みハードウェアパスの組
type hwNode struct {
	Device string // デバイスパス（例: /dev/video0）
	HW     string // シンボリックリンク解決後のハードウェアパス
}

// Topology は video ノードのハードウェアパスからの逆引き表
type Topology struct {
	byHW  map[string][]string
	order map[string]int
	nodes []hwNode
}

// NewTopology は video ノード一覧（列挙順）から Topology を作成する
func NewTopology(videos []hwNode) *Topology {
	t := &Topology{
		byHW:  make(map[string][]string),
		order: make(map[string]int, len(videos)),
		nodes: videos,
	}
	for i, node := range videos {
		t.order[node.Device] = i
		if node.HW == "" {
			continue
		}
		t.byHW[node.HW] = append(t.byHW[node.HW], node.Device)
	}
	return t
}

// Links はコントローラのハードウェアパスに対応する video ノードを列挙順で返す
// 完全一致に加え、どちらか一方がもう一方のパス接頭辞である場合も対応とみなす
func (t *Topology) Links(controllerHW string) []string {
	if controllerHW == "" {
		return nil
	}

	linked := make(map[string]bool)
	for _, device := range t.byHW[controllerHW] {
		linked[device] = true
	}
	for hw, devices := range t.byHW {
		if hw == controllerHW || !(isPathPrefix(hw, controllerHW) || isPathPrefix(controllerHW, hw)) {
			continue
		}
		for _, device := range devices {
			linked[device] = true
		}
	}

	links := make([]string, 0, len(linked))
	for _, node := range t.nodes {
		if linked[node.Device] {
			links = append(links, node.Device)
		}
	}
	return links
}

// isPathPrefix は prefix がパス要素単位で path の接頭辞かを返す
func isPathPrefix(prefix, path string) bool {
	prefix = filepath.Clean(prefix)
	path = filepath.Clean(path)
	if prefix == path {
		return true
	}
	if prefix == string(filepath.Separator) {
		return strings.HasPrefix(path, prefix)
	}
	return strings.HasPrefix(path, prefix+string(filepath.Separator))
}

// canonicalHardwarePath は sysfs エントリの device リンクを解決したパスを返す
// device リンクがなければエントリ自体を解決する。解決できなければ空文字
func canonicalHardwarePath(entry string) string {
	if resolved, err := filepath.EvalSymlinks(filepath.Join(entry, "device")); err == nil {
		return resolved
	}
	if resolved, err := filepath.EvalSymlinks(entry); err == nil {
		return resolved
	}
	return ""
}
