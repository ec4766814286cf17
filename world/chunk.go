package world

import "sync"

const (
	ChunkWidth  = 16
	ChunkHeight = 256
	ChunkDepth  = 16

	// SurfaceY 平坦地形的草皮高度：其下三层泥土，再往下全是石头
	SurfaceY = 64
)

// BlockType 方块类型，每个体素一字节
type BlockType byte

const (
	Air BlockType = iota
	Grass
	Dirt
	Stone
)

// ChunkPos 区块坐标（世界坐标除以区块宽深向下取整）
type ChunkPos struct {
	X, Z int
}

// Chunk 管理 16x256x16 范围内的方块。局部坐标越界时读返回 Air、写为空操作，
// 永远不会崩溃。体素读写都走区块锁，同一坐标的检查+写入不会与别的请求交错。
type Chunk struct {
	Pos ChunkPos

	mu     sync.Mutex
	blocks [ChunkWidth][ChunkHeight][ChunkDepth]BlockType
}

func inChunk(x, y, z int) bool {
	return x >= 0 && x < ChunkWidth && y >= 0 && y < ChunkHeight && z >= 0 && z < ChunkDepth
}

// Get 读局部坐标的方块，越界返回 Air
func (c *Chunk) Get(x, y, z int) BlockType {
	if !inChunk(x, y, z) {
		return Air
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blocks[x][y][z]
}

// Set 写局部坐标的方块，越界为空操作
func (c *Chunk) Set(x, y, z int, b BlockType) {
	if !inChunk(x, y, z) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocks[x][y][z] = b
}

// place 目标为 Air 才写入。越界坐标读出来就是 Air，视作允许，写入被裁剪掉
func (c *Chunk) place(x, y, z int, b BlockType) bool {
	if !inChunk(x, y, z) {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.blocks[x][y][z] != Air {
		return false
	}
	c.blocks[x][y][z] = b
	return true
}

// breakBlock 目标非 Air 才生效，成功后置为 Air
func (c *Chunk) breakBlock(x, y, z int) bool {
	if !inChunk(x, y, z) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.blocks[x][y][z] == Air {
		return false
	}
	c.blocks[x][y][z] = Air
	return true
}

// Snapshot 返回按 x,y,z 展平的体素副本，供区块回放与整块下发使用
func (c *Chunk) Snapshot() []byte {
	out := make([]byte, ChunkWidth*ChunkHeight*ChunkDepth)
	c.mu.Lock()
	defer c.mu.Unlock()
	i := 0
	for x := 0; x < ChunkWidth; x++ {
		for y := 0; y < ChunkHeight; y++ {
			for z := 0; z < ChunkDepth; z++ {
				out[i] = byte(c.blocks[x][y][z])
				i++
			}
		}
	}
	return out
}

// generateChunk 确定性平坦地形：y<61 石头，61-63 泥土，64 草皮，其余为空。
// 填充发生在区块发布前，无需持锁。
func generateChunk(pos ChunkPos) *Chunk {
	c := &Chunk{Pos: pos}
	for x := 0; x < ChunkWidth; x++ {
		for z := 0; z < ChunkDepth; z++ {
			for y := 0; y < SurfaceY-3; y++ {
				c.blocks[x][y][z] = Stone
			}
			for y := SurfaceY - 3; y < SurfaceY; y++ {
				c.blocks[x][y][z] = Dirt
			}
			c.blocks[x][SurfaceY][z] = Grass
		}
	}
	return c
}
