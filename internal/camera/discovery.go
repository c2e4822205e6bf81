package camera

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// デフォルトの走査対象
const (
	DefaultSysfsRoot       = "/sys/class/video4linux"
	DefaultMediaRoot       = "/sys/bus/media/devices"
	DefaultDevRoot         = "/dev"
	DefaultFallbackIndices = 10
)

var videoNamePattern = regexp.MustCompile(`^video(\d+)$`)

// Prober はデバイスを開いて1フレーム読めるか確認する（Selector が実装する）
type Prober interface {
	Probe(id Identifier) (HandleProps, bool)
}

// EnumeratorOptions は Enumerator の設定
type EnumeratorOptions struct {
	SysfsRoot       string
	MediaRoot       string
	DevRoot         string
	FallbackIndices int

	// CardNamer は sysfs に name がない場合のデバイス名取得関数
	CardNamer func(devPath string) string
	Logger    *zap.Logger
}

// Enumerator は sysfs を走査してキャプチャデバイスを列挙する
type Enumerator struct {
	prober          Prober
	sysfsRoot       string
	mediaRoot       string
	devRoot         string
	fallbackIndices int
	cardNamer       func(devPath string) string
	logger          *zap.Logger
}

// videoEntry は sysfs 上の video ノード1件
type videoEntry struct {
	name    string
	sysPath string
	node    hwNode
}

// NewEnumerator は新しい Enumerator を作成する
func NewEnumerator(prober Prober, opts EnumeratorOptions) *Enumerator {
	e := &Enumerator{
		prober:          prober,
		sysfsRoot:       opts.SysfsRoot,
		mediaRoot:       opts.MediaRoot,
		devRoot:         opts.DevRoot,
		fallbackIndices: opts.FallbackIndices,
		cardNamer:       opts.CardNamer,
		logger:          opts.Logger,
	}
	if e.sysfsRoot == "" {
		e.sysfsRoot = DefaultSysfsRoot
	}
	if e.mediaRoot == "" {
		e.mediaRoot = DefaultMediaRoot
	}
	if e.devRoot == "" {
		e.devRoot = DefaultDevRoot
	}
	if e.fallbackIndices <= 0 {
		e.fallbackIndices = DefaultFallbackIndices
	}
	if e.cardNamer == nil {
		e.cardNamer = v4l2CardName
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// ListAvailableCameras は利用可能なキャプチャデバイスを列挙する
// エラーは返さない。プローブに失敗したデバイスは Available=false で含める
func (e *Enumerator) ListAvailableCameras(ctx context.Context) []DeviceDescriptor {
	if _, err := os.Stat(e.sysfsRoot); err != nil {
		e.logger.Debug("sysfs が見つからないため番号で探索します",
			zap.String("root", e.sysfsRoot), zap.Int("indices", e.fallbackIndices))
		return e.probeIndices(ctx)
	}

	entries := e.scanVideoEntries()
	devices := make([]DeviceDescriptor, 0, len(entries))
	for _, entry := range entries {
		devices = append(devices, e.describeVideo(ctx, entry))
	}

	topology := newTopologyFromEntries(entries)
	devices = append(devices, e.describeControllers(topology, devices)...)

	e.logger.Debug("デバイス列挙が完了", zap.Int("count", len(devices)))
	return devices
}

// LinkedVideoNodes はコントローラノードが駆動する video ノードを返す
func (e *Enumerator) LinkedVideoNodes(controllerPath string) []string {
	name := filepath.Base(controllerPath)
	if !controllerNamePattern.MatchString(name) {
		return nil
	}
	topology := newTopologyFromEntries(e.scanVideoEntries())
	return topology.Links(canonicalHardwarePath(filepath.Join(e.mediaRoot, name)))
}

// scanVideoEntries は video ノードを辞書順で返す
func (e *Enumerator) scanVideoEntries() []videoEntry {
	dirEntries, err := os.ReadDir(e.sysfsRoot)
	if err != nil {
		return nil
	}

	var names []string
	for _, dirEntry := range dirEntries {
		if strings.HasPrefix(dirEntry.Name(), "video") {
			names = append(names, dirEntry.Name())
		}
	}
	sort.Strings(names)

	entries := make([]videoEntry, 0, len(names))
	for _, name := range names {
		sysPath := filepath.Join(e.sysfsRoot, name)
		entries = append(entries, videoEntry{
			name:    name,
			sysPath: sysPath,
			node: hwNode{
				Device: filepath.Join(e.devRoot, name),
				HW:     canonicalHardwarePath(sysPath),
			},
		})
	}
	return entries
}

// describeVideo は video ノード1件をプローブして記述子を作る
func (e *Enumerator) describeVideo(ctx context.Context, entry videoEntry) DeviceDescriptor {
	id := PathID(entry.node.Device)
	label := entry.name
	if n, ok := extractDeviceNumber(entry.name); ok {
		id = IndexID(n)
		label = strconv.Itoa(n)
	}

	descriptor := DeviceDescriptor{
		ID:               id,
		Name:             e.displayName(entry, label),
		Kind:             KindVideo,
		Device:           entry.node.Device,
		LinkedVideoNodes: []string{},
	}

	// キャンセル済みならプローブせずに利用不可として返す
	if ctx.Err() != nil {
		return descriptor
	}

	applyProbe(&descriptor, e.prober, id)
	return descriptor
}

// describeControllers は media コントローラノードの記述子を作る
// 対応する video ノードのうち最初にプローブ成功したものの結果を集約する
func (e *Enumerator) describeControllers(topology *Topology, videos []DeviceDescriptor) []DeviceDescriptor {
	dirEntries, err := os.ReadDir(e.mediaRoot)
	if err != nil {
		return nil
	}

	var names []string
	for _, dirEntry := range dirEntries {
		if controllerNamePattern.MatchString(dirEntry.Name()) {
			names = append(names, dirEntry.Name())
		}
	}
	sort.Strings(names)

	byDevice := make(map[string]DeviceDescriptor, len(videos))
	for _, video := range videos {
		byDevice[video.Device] = video
	}

	controllers := make([]DeviceDescriptor, 0, len(names))
	for _, name := range names {
		entry := filepath.Join(e.mediaRoot, name)
		devPath := filepath.Join(e.devRoot, name)
		links := topology.Links(canonicalHardwarePath(entry))
		if links == nil {
			links = []string{}
		}

		descriptor := DeviceDescriptor{
			ID:               PathID(devPath),
			Kind:             KindController,
			Device:           devPath,
			LinkedVideoNodes: links,
		}

		for _, link := range links {
			video, ok := byDevice[link]
			if !ok || !video.Available {
				continue
			}
			descriptor.Available = true
			descriptor.Resolution = video.Resolution
			descriptor.FPS = video.FPS
			break
		}

		descriptor.Name = readFirstLine(filepath.Join(entry, "model"))
		if descriptor.Name == "" && len(links) > 0 {
			descriptor.Name = byDevice[links[0]].Name
		}
		if descriptor.Name == "" {
			descriptor.Name = fmt.Sprintf("Controller %s", strings.TrimPrefix(name, "media"))
		}

		controllers = append(controllers, descriptor)
	}
	return controllers
}

// probeIndices は sysfs がない環境で番号 0..N-1 を直接試す
// 開けた番号のみを返す
func (e *Enumerator) probeIndices(ctx context.Context) []DeviceDescriptor {
	devices := []DeviceDescriptor{}
	for i := 0; i < e.fallbackIndices; i++ {
		if ctx.Err() != nil {
			break
		}

		descriptor := DeviceDescriptor{
			ID:               IndexID(i),
			Name:             fmt.Sprintf("Camera %d", i),
			Kind:             KindVideo,
			LinkedVideoNodes: []string{},
		}
		applyProbe(&descriptor, e.prober, descriptor.ID)
		if descriptor.Available {
			devices = append(devices, descriptor)
		}
	}
	return devices
}

// displayName は sysfs の name、V4L2 のカード名、番号の順で表示名を決める
func (e *Enumerator) displayName(entry videoEntry, label string) string {
	if name := readFirstLine(filepath.Join(entry.sysPath, "name")); name != "" {
		return name
	}
	if name := e.cardNamer(entry.node.Device); name != "" {
		return name
	}
	return fmt.Sprintf("Camera %s", label)
}

func applyProbe(descriptor *DeviceDescriptor, prober Prober, id Identifier) {
	if prober == nil {
		return
	}
	props, ok := prober.Probe(id)
	if !ok {
		return
	}
	descriptor.Available = true
	fps := props.FPS
	descriptor.FPS = &fps
	if props.Width > 0 && props.Height > 0 {
		descriptor.Resolution = &Resolution{Width: props.Width, Height: props.Height}
	}
}

func newTopologyFromEntries(entries []videoEntry) *Topology {
	nodes := make([]hwNode, 0, len(entries))
	for _, entry := range entries {
		nodes = append(nodes, entry.node)
	}
	return NewTopology(nodes)
}

// extractDeviceNumber は videoNN から NN を抽出する
func extractDeviceNumber(name string) (int, bool) {
	matches := videoNamePattern.FindStringSubmatch(name)
	if len(matches) < 2 {
		return 0, false
	}

	num, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, false
	}

	return num, true
}

func readFirstLine(path string) string {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	line := string(raw)
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	return strings.TrimSpace(line)
}
