// Package testutil 提供测试辅助工具
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashwinyue/next-support/internal/model"
	"github.com/ashwinyue/next-support/internal/repository"
)

// MemoryStore 内存版数据仓库，按操作名注入错误
type MemoryStore struct {
	mu             sync.Mutex
	users          map[string]*model.User
	conversations  map[string]*model.Conversation
	messages       []*model.Message
	orders         map[string]*model.Order
	payments       map[string]*model.Payment
	articles       []*model.KnowledgeArticle
	failures       map[string]error
	clock          time.Time
	metadataWrites int
}

// NewMemoryStore 创建空仓库
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]*model.User),
		conversations: make(map[string]*model.Conversation),
		orders:        make(map[string]*model.Order),
		payments:      make(map[string]*model.Payment),
		failures:      make(map[string]error),
		clock:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Fail 让指定操作返回 err，如 "messages.create"
func (s *MemoryStore) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

func (s *MemoryStore) failure(op string) error {
	return s.failures[op]
}

// now 单调递增的时间，保证创建顺序可比较
func (s *MemoryStore) now() time.Time {
	s.clock = s.clock.Add(time.Millisecond)
	return s.clock
}

// Repositories 组装仓库集合
func (s *MemoryStore) Repositories() *repository.Repositories {
	return &repository.Repositories{
		Conversations: s.ConversationRepo(),
		Messages:      s.MessageRepo(),
		Users:         s.UserRepo(),
		Orders:        s.OrderRepo(),
		Payments:      s.PaymentRepo(),
		Knowledge:     s.KnowledgeRepo(),
	}
}

// ConversationRepo 会话仓库
func (s *MemoryStore) ConversationRepo() repository.ConversationRepository {
	return &memConversations{s}
}

// MessageRepo 消息仓库
func (s *MemoryStore) MessageRepo() repository.MessageRepository { return &memMessages{s} }

// UserRepo 用户仓库
func (s *MemoryStore) UserRepo() repository.UserRepository { return &memUsers{s} }

// OrderRepo 订单仓库
func (s *MemoryStore) OrderRepo() repository.OrderRepository { return &memOrders{s} }

// PaymentRepo 支付仓库
func (s *MemoryStore) PaymentRepo() repository.PaymentRepository { return &memPayments{s} }

// KnowledgeRepo 知识库仓库
func (s *MemoryStore) KnowledgeRepo() repository.KnowledgeRepository { return &memKnowledge{s} }

// ========== 数据准备 ==========

// AddUser 添加用户
func (s *MemoryStore) AddUser(u *model.User) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	s.users[u.ID] = u
	return u
}

// AddConversation 添加会话
func (s *MemoryStore) AddConversation(c *model.Conversation) *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = model.ConversationActive
	}
	now := s.now()
	c.CreatedAt, c.UpdatedAt = now, now
	s.conversations[c.ID] = c
	return c
}

// AddMessage 直接追加消息
func (s *MemoryStore) AddMessage(m *model.Message) *model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendMessage(m)
	return m
}

// AddOrder 添加订单
func (s *MemoryStore) AddOrder(o *model.Order) *model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now()
	}
	s.orders[o.ID] = o
	return o
}

// AddPayment 添加支付记录
func (s *MemoryStore) AddPayment(p *model.Payment) *model.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	s.payments[p.ID] = p
	return p
}

// AddArticle 添加知识库条目
func (s *MemoryStore) AddArticle(a *model.KnowledgeArticle) *model.KnowledgeArticle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	s.articles = append(s.articles, a)
	return a
}

// ========== 断言辅助 ==========

// Messages 会话下的全部消息副本
func (s *MemoryStore) Messages(conversationID string) []*model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Message
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out
}

// Conversation 会话副本，不存在时返回 nil
func (s *MemoryStore) Conversation(id string) *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil
	}
	cp := *c
	return &cp
}

// MetadataWrites 会话元数据写入次数
func (s *MemoryStore) MetadataWrites() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metadataWrites
}

// Order 订单副本
func (s *MemoryStore) Order(id string) *model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil
	}
	cp := *o
	return &cp
}

// Payment 支付记录副本
func (s *MemoryStore) Payment(id string) *model.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

func (s *MemoryStore) appendMessage(m *model.Message) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}
	s.messages = append(s.messages, m)
}

// ========== 会话 ==========

type memConversations struct{ s *MemoryStore }

func (r *memConversations) Create(ctx context.Context, conv *model.Conversation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("conversations.create"); err != nil {
		return err
	}
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	now := r.s.now()
	conv.CreatedAt, conv.UpdatedAt = now, now
	cp := *conv
	r.s.conversations[conv.ID] = &cp
	return nil
}

func (r *memConversations) GetByID(ctx context.Context, id string) (*model.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("conversations.get"); err != nil {
		return nil, err
	}
	c, ok := r.s.conversations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memConversations) ListByUser(ctx context.Context, userID string, offset, limit int) ([]*model.Conversation, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("conversations.list"); err != nil {
		return nil, 0, err
	}
	var all []*model.Conversation
	for _, c := range r.s.conversations {
		if c.UserID == userID {
			cp := *c
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.After(all[j].UpdatedAt) })
	return page(all, offset, limit), int64(len(all)), nil
}

func (r *memConversations) Update(ctx context.Context, conv *model.Conversation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("conversations.update"); err != nil {
		return err
	}
	c, ok := r.s.conversations[conv.ID]
	if !ok {
		return repository.ErrNotFound
	}
	c.Title = conv.Title
	c.Status = conv.Status
	c.UpdatedAt = r.s.now()
	return nil
}

func (r *memConversations) UpdateMetadata(ctx context.Context, id string, meta model.ConversationMetadata) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("conversations.metadata"); err != nil {
		return err
	}
	c, ok := r.s.conversations[id]
	if !ok {
		return repository.ErrNotFound
	}
	c.Metadata = meta
	c.UpdatedAt = r.s.now()
	r.s.metadataWrites++
	return nil
}

func (r *memConversations) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("conversations.delete"); err != nil {
		return err
	}
	if _, ok := r.s.conversations[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.conversations, id)
	kept := r.s.messages[:0]
	for _, m := range r.s.messages {
		if m.ConversationID != id {
			kept = append(kept, m)
		}
	}
	r.s.messages = kept
	return nil
}

// ========== 消息 ==========

type memMessages struct{ s *MemoryStore }

func (r *memMessages) Create(ctx context.Context, msg *model.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("messages.create." + msg.Role); err != nil {
		return err
	}
	if err := r.s.failure("messages.create"); err != nil {
		return err
	}
	cp := *msg
	r.s.appendMessage(&cp)
	msg.ID, msg.CreatedAt = cp.ID, cp.CreatedAt
	return nil
}

func (r *memMessages) ListByConversation(ctx context.Context, conversationID string) ([]*model.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("messages.list"); err != nil {
		return nil, err
	}
	var out []*model.Message
	for _, m := range r.s.messages {
		if m.ConversationID == conversationID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memMessages) ListPage(ctx context.Context, conversationID string, offset, limit int) ([]*model.Message, int64, error) {
	all, err := r.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, 0, err
	}
	return page(all, offset, limit), int64(len(all)), nil
}

// ========== 用户 ==========

type memUsers struct{ s *MemoryStore }

func (r *memUsers) GetByID(ctx context.Context, id string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("users.get"); err != nil {
		return nil, err
	}
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// ========== 订单 ==========

type memOrders struct{ s *MemoryStore }

func (r *memOrders) FindByNumber(ctx context.Context, userID, orderNumber string) (*model.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("orders.find"); err != nil {
		return nil, err
	}
	for _, o := range r.s.orders {
		if o.OrderNumber == orderNumber && o.UserID == userID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memOrders) ListByUser(ctx context.Context, userID, status string, limit int) ([]*model.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("orders.list"); err != nil {
		return nil, err
	}
	var out []*model.Order
	for _, o := range r.s.orders {
		if o.UserID == userID && (status == "" || o.Status == status) {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, 0, limit), nil
}

func (r *memOrders) CountByUser(ctx context.Context, userID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, o := range r.s.orders {
		if o.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *memOrders) UpdateStatus(ctx context.Context, id, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("orders.update"); err != nil {
		return err
	}
	o, ok := r.s.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	o.Status = status
	return nil
}

func (r *memOrders) GetByID(ctx context.Context, id string) (*model.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

// ========== 支付 ==========

type memPayments struct{ s *MemoryStore }

func (r *memPayments) FindByInvoice(ctx context.Context, userID, invoiceNumber string) (*model.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("payments.find"); err != nil {
		return nil, err
	}
	for _, p := range r.s.payments {
		if p.InvoiceNumber == invoiceNumber && p.UserID == userID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memPayments) ListByUser(ctx context.Context, userID, status string, limit int) ([]*model.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("payments.list"); err != nil {
		return nil, err
	}
	var out []*model.Payment
	for _, p := range r.s.payments {
		if p.UserID == userID && (status == "" || p.Status == status) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, 0, limit), nil
}

func (r *memPayments) ApplyRefund(ctx context.Context, id string, refund repository.RefundUpdate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("payments.refund"); err != nil {
		return err
	}
	p, ok := r.s.payments[id]
	if !ok {
		return repository.ErrNotFound
	}
	amount := refund.RefundAmount
	p.Status = refund.Status
	p.RefundStatus = refund.RefundStatus
	p.RefundAmount = &amount
	p.RefundReason = refund.RefundReason
	return nil
}

// ========== 知识库 ==========

type memKnowledge struct{ s *MemoryStore }

func (r *memKnowledge) Search(ctx context.Context, query, category string, limit int) ([]*model.KnowledgeArticle, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("knowledge.search"); err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	words := strings.Fields(q)

	var out []*model.KnowledgeArticle
	for _, a := range r.s.articles {
		if category != "" && a.Category != category {
			continue
		}
		if strings.Contains(strings.ToLower(a.Question), q) ||
			strings.Contains(strings.ToLower(a.Answer), q) ||
			overlaps(a.Keywords, words) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return page(out, 0, limit), nil
}

func (r *memKnowledge) ListAll(ctx context.Context) ([]*model.KnowledgeArticle, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*model.KnowledgeArticle, len(r.s.articles))
	copy(out, r.s.articles)
	return out, nil
}

func overlaps(keywords []string, words []string) bool {
	for _, k := range keywords {
		for _, w := range words {
			if k == w {
				return true
			}
		}
	}
	return false
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
