package script

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

const counterModule = `
globalThis.loads = (globalThis.loads || 0) + 1;
module.exports = { n: globalThis.loads };
`

func TestRequireReevaluatesWithoutCache(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.store.Register("lib/counter.js", []byte(counterModule), "")

	got := env.eval(t, `
		var first = require('lib/counter');
		var second = require('/lib/counter.js');
		[first.n, second.n, loads].join(',');
	`)
	assert.Equal(t, "1,2,2", got)
	assert.Equal(t, float64(2), testutil.ToFloat64(env.metrics.ModuleLoads.WithLabelValues("loaded")))
}

func TestRequireCachesWhenEnabled(t *testing.T) {
	env := newTestEnv(t, Config{ModuleCache: true})
	env.store.Register("counter.js", []byte(counterModule), "")

	got := env.eval(t, `
		var a = require('counter');
		var b = require('./counter.js');
		[a === b, loads].join(',');
	`)
	assert.Equal(t, "true,1", got)
	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.ModuleLoads.WithLabelValues("cached")))
}

func TestRequireSeesReregisteredSource(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.store.Register("greeting.js", []byte(`module.exports = 'hello';`), "")
	assert.Equal(t, "hello", env.eval(t, `require('greeting')`))

	env.store.Register("greeting.js", []byte(`module.exports = 'bonjour';`), "")
	assert.Equal(t, "bonjour", env.eval(t, `require('greeting')`))
}

func TestRequireMissingModuleThrowsReferenceError(t *testing.T) {
	env := newTestEnv(t, Config{})

	got := env.eval(t, `
		var result;
		try {
			require('nope');
			result = 'loaded';
		} catch (e) {
			result = (e instanceof ReferenceError) + ':' + e.message;
		}
		result;
	`)
	assert.Equal(t, "true:Module not found: nope", got)
	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.ModuleLoads.WithLabelValues("missing")))
}

func TestRequireRestoresModuleGlobals(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.store.Register("ok.js", []byte(`exports.value = 42;`), "")
	env.store.Register("broken.js", []byte(`module.exports = 1; throw new Error('broken');`), "")

	got := env.eval(t, `
		var before = module;
		var ok = require('ok');
		var threw = false;
		try { require('broken'); } catch (e) { threw = e.message === 'broken'; }
		[ok.value, threw, module === before, exports === before.exports].join(',');
	`)
	assert.Equal(t, "42,true,true,true", got)
	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.ScriptErrors.WithLabelValues(BoundaryModule)))
}

func TestRequireNestedModules(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.store.Register("a.js", []byte(`var b = require('b'); module.exports = 'a' + b;`), "")
	env.store.Register("b.js", []byte(`module.exports = 'b';`), "")

	assert.Equal(t, "ab", env.eval(t, `require('a')`))
}

func TestRequireBuiltins(t *testing.T) {
	env := newTestEnv(t, Config{})

	tests := []struct {
		expr string
		want any
	}{
		{`require('http').fetch === fetch`, true},
		{`require('https').fetch === fetch`, true},
		{`require('fs') === fs`, true},
		{`require('path') === path`, true},
		{`require('os') === os`, true},
		{`require('child_process') === child_process`, true},
		{`require('events') === EventEmitter`, true},
		{`require('events').EventEmitter === EventEmitter`, true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			assert.Equal(t, tt.want, env.eval(t, tt.expr))
		})
	}
}

func TestBuiltinShadowsAsset(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.store.Register("fs.js", []byte(`module.exports = 'asset';`), "")

	assert.Equal(t, true, env.eval(t, `require('fs') === fs`))
	assert.Equal(t, "asset", env.eval(t, `require('fs.js')`))
}
