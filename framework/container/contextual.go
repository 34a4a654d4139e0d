package container

import "context"

// contextualTarget is what a dependent gets instead of the bean it names.
// Exactly one of beanID, factory or value applies.
type contextualTarget struct {
	beanID  string
	factory FactoryFunc
	value   any
}

// ContextualBuilder implements the fluent contextual binding API.
//
//	// Laravel: $app->when(PhotoController::class)->needs(Filesystem::class)->give(S3Filesystem::class)
//	c.When("photoController").Needs("filesystem").Give("s3Filesystem")
type ContextualBuilder struct {
	container *Container
	dependent string
	needs     string
}

// When starts a contextual binding for the bean dependent.
func (c *Container) When(dependent string) *ContextualBuilder {
	return &ContextualBuilder{container: c, dependent: dependent}
}

// Needs names the reference (constructor arg or property Ref) to override.
func (b *ContextualBuilder) Needs(ref string) *ContextualBuilder {
	b.needs = ref
	return b
}

// Give resolves the reference to another bean instead.
func (b *ContextualBuilder) Give(beanID string) {
	b.set(contextualTarget{beanID: beanID})
}

// GiveFactory resolves the reference by calling factory each time the
// dependent is built.
func (b *ContextualBuilder) GiveFactory(factory FactoryFunc) {
	b.set(contextualTarget{factory: factory})
}

// GiveValue resolves the reference to a fixed value.
//
//	// Laravel: ->give('/tmp/photos')
//	c.When("photoController").Needs("storagePath").GiveValue("/tmp/photos")
func (b *ContextualBuilder) GiveValue(value any) {
	b.set(contextualTarget{value: value})
}

func (b *ContextualBuilder) set(t contextualTarget) {
	c := b.container
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.contextual[b.dependent]; !ok {
		c.contextual[b.dependent] = make(map[string]contextualTarget)
	}
	c.contextual[b.dependent][b.needs] = t
}

// resolveRef resolves ref on behalf of dependent, honouring contextual
// bindings. Only bean targets take part in dependency tracking.
func (c *Container) resolveRef(ctx context.Context, dependent, ref string) (any, error) {
	c.mu.RLock()
	t, ok := c.contextual[dependent][ref]
	c.mu.RUnlock()

	switch {
	case !ok:
		return c.GetBean(ctx, ref)
	case t.beanID != "":
		return c.GetBean(ctx, t.beanID)
	case t.factory != nil:
		return t.factory(ctx, c)
	default:
		return t.value, nil
	}
}
