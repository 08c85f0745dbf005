package compile

import (
	"github.com/segmentio/ksuid"

	"shadeir/internal/codegen"
	"shadeir/internal/ir"
	"shadeir/internal/transform"
)

// ID tags one driver invocation. It is minted fresh per Run, returned once
// the compile completes, and never persisted into the IR itself. It is not
// attached to diag.InternalError, so a Run that aborts with a panic yields
// no ID.
type ID string

func newID() ID { return ID(ksuid.New().String()) }

// Run drives irv through the full pass pipeline (§6: pre-variable-collection
// transforms, post-variable-collection transforms, the supplemented
// pixel-local-storage/multiview/fragcolor rewrites, dealias, astify) and
// then hands the finalized IR to target for code generation. It mirrors
// generate_ast's fixed ordering exactly; reordering any of these passes is
// not a supported configuration.
func Run(irv *ir.IR, opts Options, target codegen.Target) ID {
	id := newID()
	commonPreVariableCollectionTransforms(irv, opts)
	commonPostVariableCollectionTransforms(irv, opts)

	// Supplemented features (§ SUPPLEMENTED FEATURES): run after
	// monomorphize-unsupported-functions, before dealias.
	if opts.PixelLocalStorage {
		transform.RewritePixelLocalStorage(irv)
	}
	if opts.Multiview {
		transform.EmulateMultiview(irv, opts.MultiviewViewIdsArray)
	}
	if opts.IsES1 && opts.NumDrawBuffers > 1 {
		transform.BroadcastFragColor(irv, opts.NumDrawBuffers)
	}

	transform.Dealias(irv)
	transform.Astify(irv)

	codegen.Generate(irv, target)
	return id
}

func commonPreVariableCollectionTransforms(irv *ir.IR, opts Options) {
	if irv.Meta.ShaderType() == ir.ShaderFragment &&
		opts.ShaderVersion >= 300 &&
		(opts.Extensions.EXT_shader_framebuffer_fetch || opts.Extensions.EXT_shader_framebuffer_fetch_non_coherent) {
		transform.RemoveUnusedFramebufferFetch(irv)
	}
}

func commonPostVariableCollectionTransforms(irv *ir.IR, opts Options) {
	transform.PruneUnusedVariables(irv)

	if opts.InitializeUninitializedVariables {
		transform.InitializeUninitializedVariables(irv, variablesNeedingInit(irv.Meta), transform.InitializeUninitializedVariablesOptions{
			LoopsAllowedWhenInitializingVariables:           opts.LoopsAllowedWhenInitializingVariables,
			InitializerAllowedOnNonConstantGlobalVariables: opts.InitializerAllowedOnNonConstantGlobalVariables,
		})
	}

	isSPIRVFamily := opts.Output == OutputSPIRV || opts.Output == OutputMSL || opts.Output == OutputWGSL
	transform.MonomorphizeUnsupportedFunctions(irv, transform.MonomorphizeOptions{
		StructContainingSamplers:     isSPIRVFamily,
		Image:                        opts.ShaderVersion >= 310,
		AtomicCounter:                opts.ShaderVersion >= 310 && opts.Output == OutputSPIRV,
		ArrayOfArrayOfSamplerOrImage: opts.ShaderVersion >= 310 && opts.Output == OutputSPIRV,
		PixelLocalStorage:            false,
	})
}

// variablesNeedingInit flags every local or global variable left without an
// initializer after pruning — params, built-ins, and every decorated
// variable are never candidates. InitializeUninitializedVariables itself
// would accept output-decorated globals, but computing the map here keeps
// the driver, not the pass, responsible for deciding which variables are
// in scope for the policy, and the driver leaves outputs out.
func variablesNeedingInit(meta *ir.Meta) map[ir.VariableId]bool {
	needsInit := make(map[ir.VariableId]bool)
	for v := 0; v < meta.NumVariables(); v++ {
		id := ir.VariableId(v)
		variable := meta.Variable(id)
		if variable.IsDeadCodeEliminated || variable.Initializer != nil {
			continue
		}
		if variable.Scope != ir.ScopeLocal && variable.Scope != ir.ScopeGlobal {
			continue
		}
		if variable.BuiltIn != ir.BuiltInNone || variable.Decoration != ir.DecorationNone {
			continue
		}
		needsInit[id] = true
	}
	return needsInit
}
