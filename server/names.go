package server

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	nameAdjectives = []string{"Happy", "Sad", "Crazy", "Lazy", "Quick"}
	nameNouns      = []string{"Llama", "Panda", "Tiger", "Eagle", "Wolf"}
)

// NewPlayerID 为玩家分配全局唯一标识
func NewPlayerID() string {
	return uuid.NewString()
}

// NameGen 为未报名字的客户端生成 形容词+名词+两位数 的随机名。
// rand.Rand 不是并发安全的，多个连接同时登录时靠锁串行化。
type NameGen struct {
	mu sync.Mutex
	r  *rand.Rand
}

func NewNameGen(seed int64) *NameGen {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &NameGen{r: rand.New(rand.NewSource(seed))}
}

func (g *NameGen) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	adj := nameAdjectives[g.r.Intn(len(nameAdjectives))]
	noun := nameNouns[g.r.Intn(len(nameNouns))]
	return fmt.Sprintf("%s%s%d", adj, noun, 10+g.r.Intn(90))
}
