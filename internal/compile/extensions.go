package compile

// Extensions is the set of shading-language extensions enabled for a
// compile (§6). Field names mirror the extension strings verbatim so a
// caller can set them by reflection off a driver-supplied string list
// without an intermediate name table.
type Extensions struct {
	ANDROID_extension_pack_es31a bool

	ANGLE_base_vertex_base_instance_shader_builtin bool
	ANGLE_clip_cull_distance                       bool
	ANGLE_multi_draw                               bool
	ANGLE_shader_pixel_local_storage                bool
	ANGLE_texture_multisample                      bool

	APPLE_clip_distance bool

	ARB_fragment_shader_interlock bool
	ARB_texture_rectangle         bool

	ARM_shader_framebuffer_fetch              bool
	ARM_shader_framebuffer_fetch_depth_stencil bool

	EXT_YUV_target                               bool
	EXT_blend_func_extended                      bool
	EXT_clip_cull_distance                       bool
	EXT_conservative_depth                       bool
	EXT_draw_buffers                             bool
	EXT_frag_depth                               bool
	EXT_fragment_shading_rate                    bool
	EXT_fragment_shading_rate_primitive          bool
	EXT_geometry_shader                          bool
	EXT_gpu_shader5                              bool
	EXT_primitive_bounding_box                   bool
	EXT_separate_shader_objects                  bool
	EXT_shader_framebuffer_fetch                 bool
	EXT_shader_framebuffer_fetch_non_coherent    bool
	EXT_shader_io_blocks                         bool
	EXT_shader_non_constant_global_initializers  bool
	EXT_shader_texture_lod                       bool
	EXT_shadow_samplers                          bool
	EXT_tessellation_shader                      bool
	EXT_texture_buffer                           bool
	EXT_texture_cube_map_array                   bool
	EXT_texture_query_lod                        bool
	EXT_texture_shadow_lod                       bool

	INTEL_fragment_shader_ordering bool

	KHR_blend_equation_advanced bool

	NV_EGL_stream_consumer_external         bool
	NV_fragment_shader_interlock            bool
	NV_shader_noperspective_interpolation bool

	OES_EGL_image_external                        bool
	OES_EGL_image_external_essl3                  bool
	OES_geometry_shader                           bool
	OES_gpu_shader5                               bool
	OES_primitive_bounding_box                    bool
	OES_sample_variables                          bool
	OES_shader_image_atomic                       bool
	OES_shader_io_blocks                          bool
	OES_shader_multisample_interpolation          bool
	OES_standard_derivatives                      bool
	OES_tessellation_shader                       bool
	OES_texture_3D                                bool
	OES_texture_buffer                            bool
	OES_texture_cube_map_array                    bool
	OES_texture_storage_multisample_2d_array      bool

	OVR_multiview  bool
	OVR_multiview2 bool

	WEBGL_video_texture bool
}
