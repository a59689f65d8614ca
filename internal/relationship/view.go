package relationship

import (
	"sort"
	"sync"

	"github.com/MORTAKI0/VitaCoach/internal/model"
)

// View はダッシュボード画面が表示するRelationship一覧のインメモリ表現。
// 楽観的更新はまずViewに適用され、リモート書き込みの失敗時には
// 更新前の値がそのまま復元される。
type View struct {
	mu    sync.RWMutex
	items map[string]model.Relationship
}

// NewView は空のViewを生成する。
func NewView() *View {
	return &View{items: make(map[string]model.Relationship)}
}

// Replace はViewの内容を一覧で置き換える。画面の再読み込みに対応する。
func (v *View) Replace(rels []model.Relationship) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.items = make(map[string]model.Relationship, len(rels))
	for _, rel := range rels {
		v.items[rel.ID] = rel
	}
}

// List はViewの内容を作成日時の新しい順で返す。
func (v *View) List() []model.Relationship {
	v.mu.RLock()
	defer v.mu.RUnlock()
	rels := make([]model.Relationship, 0, len(v.items))
	for _, rel := range v.items {
		rels = append(rels, rel)
	}
	sort.Slice(rels, func(i, j int) bool {
		return rels[i].CreatedAt.After(rels[j].CreatedAt)
	})
	return rels
}

// Get はIDでRelationshipを返す。
func (v *View) Get(id string) (model.Relationship, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	rel, ok := v.items[id]
	return rel, ok
}

// Set はRelationshipを追加または上書きする。
func (v *View) Set(rel model.Relationship) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.items[rel.ID] = rel
}

// Remove はRelationshipを取り除く。存在しないIDは無視される。
func (v *View) Remove(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.items, id)
}

// Len は件数を返す。
func (v *View) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.items)
}
