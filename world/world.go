package world

import "sync"

// World 管理所有区块与世界生成：按区块坐标惰性生成，区块一旦创建缓存至进程结束。
// 注入到每个连接处理器与广播协程，不依赖全局单例。
type World struct {
	mu     sync.RWMutex
	chunks map[ChunkPos]*Chunk
}

func New() *World {
	return &World{chunks: make(map[ChunkPos]*Chunk)}
}

// Chunk 获取区块，不存在则生成。生成发生在地图锁之外，
// 避免首次访问新区域时拖住其他区块的读写。
func (w *World) Chunk(cx, cz int) *Chunk {
	pos := ChunkPos{X: cx, Z: cz}
	w.mu.RLock()
	ch := w.chunks[pos]
	w.mu.RUnlock()
	if ch != nil {
		return ch
	}

	fresh := generateChunk(pos)
	w.mu.Lock()
	if ch = w.chunks[pos]; ch == nil {
		ch = fresh
		w.chunks[pos] = ch
	}
	w.mu.Unlock()
	return ch
}

// ChunkCount 当前已生成的区块数
func (w *World) ChunkCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.chunks)
}

// GetBlock 按世界坐标取方块；未生成/越界一律返回 Air，同时触发所属区块生成
func (w *World) GetBlock(x, y, z int) BlockType {
	ch := w.Chunk(FloorDiv(x, ChunkWidth), FloorDiv(z, ChunkDepth))
	return ch.Get(Mod(x, ChunkWidth), y, Mod(z, ChunkDepth))
}

// SetBlock 按世界坐标写方块；任何坐标都不报错，越界为空操作
func (w *World) SetBlock(x, y, z int, b BlockType) {
	ch := w.Chunk(FloorDiv(x, ChunkWidth), FloorDiv(z, ChunkDepth))
	ch.Set(Mod(x, ChunkWidth), y, Mod(z, ChunkDepth), b)
}

// Place 放置方块：目标当前为 Air 才生效。检查与写入在区块锁内一次完成，
// 两个连接同时抢同一坐标时只会有一个成功。
func (w *World) Place(x, y, z int, b BlockType) bool {
	ch := w.Chunk(FloorDiv(x, ChunkWidth), FloorDiv(z, ChunkDepth))
	return ch.place(Mod(x, ChunkWidth), y, Mod(z, ChunkDepth), b)
}

// Break 破坏方块：目标当前非 Air 才生效，成功后该格变为 Air
func (w *World) Break(x, y, z int) bool {
	ch := w.Chunk(FloorDiv(x, ChunkWidth), FloorDiv(z, ChunkDepth))
	return ch.breakBlock(Mod(x, ChunkWidth), y, Mod(z, ChunkDepth))
}

// FloorDiv 向下取整除法，负坐标与正坐标映射到区块索引时保持一致
func FloorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// Mod 与 FloorDiv 配套的取模，结果恒在 [0, b)
func Mod(a, b int) int {
	m := a % b
	if m != 0 && (a < 0) != (b < 0) {
		m += b
	}
	return m
}
