// Package compile wires the middle-end passes and the codegen adapter into
// the single synchronous driver call §6 describes: one Options-configured
// Run per compile, no persisted state beyond the IR itself.
package compile

import "shadeir/internal/ir"

// OutputLanguage is the compiler's output target (§6).
type OutputLanguage int

const (
	OutputNull OutputLanguage = iota
	OutputESSL
	OutputGLSLCompatibility
	OutputGLSL130
	OutputGLSL140
	OutputGLSL150Core
	OutputGLSL330Core
	OutputGLSL400Core
	OutputGLSL410Core
	OutputGLSL420Core
	OutputGLSL430Core
	OutputGLSL440Core
	OutputGLSL450Core
	OutputHLSL3
	OutputHLSL41
	OutputSPIRV
	OutputMSL
	OutputWGSL
)

// Options is the input configuration record a compile is driven by (§6).
type Options struct {
	ShaderVersion int
	Extensions    Extensions
	Output        OutputLanguage

	IsES1 bool

	InitializeUninitializedVariables              bool
	LoopsAllowedWhenInitializingVariables          bool
	InitializerAllowedOnNonConstantGlobalVariables bool

	// PixelLocalStorage gates RewritePixelLocalStorage.
	PixelLocalStorage bool
	// Multiview gates EmulateMultiview; MultiviewViewIdsArray names the
	// array variable a gl_ViewID_OVR read is rewritten to index into.
	Multiview             bool
	MultiviewViewIdsArray ir.VariableId

	// NumDrawBuffers gates BroadcastFragColor (§ SUPPLEMENTED FEATURES):
	// how many gl_FragData indices an ES1 gl_FragColor write broadcasts to.
	NumDrawBuffers int
}
