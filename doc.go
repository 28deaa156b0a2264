// Package offstage is the offscreen-effect and redraw-clipping render
// pipeline for scene-graph GUIs.
//
// Offstage provides per-camera render-target caching, an offscreen effect
// pipeline with derived effects such as gaussian blur, damage tracking
// with buffer-age reconciliation, and a frame presentation scheduler that
// picks the cheapest present the driver supports.
//
// The scene graph itself lives outside this package: actors, cameras, and
// the stage enter through the [Actor], [Camera], and [Stage] interfaces,
// and the GPU enters through [Backend]. [BasicStage] and [BasicCamera]
// are ready-made implementations for applications without their own scene
// graph, and two backends ship in the box: [EbitenBackend] on
// [Ebitengine], and OpenGL over GLFW in offstage/glbackend.
//
// # Effects
//
// An [OffscreenEffect] redirects an actor's painting into a cached
// per-camera texture and composites that capture back where the actor
// would have painted. While the actor, its transform, and its camera stay
// unchanged, repeated paints reuse the capture without running the actor
// at all:
//
//	effect := offstage.NewBlurEffect(backend, stage)
//	effect.SetActor(actor)
//
//	// In the paint pass, instead of actor.Paint():
//	effect.Paint(flags)
//
// Derived effects embed [OffscreenEffect], shadow the phases they
// customize, and register themselves with [OffscreenEffect.SetPhases].
// [BlurEffect] is the worked example: a separable gaussian blur whose
// sigma can be animated through [gween] easing.
//
// # Redraw clipping
//
// A [StageWindow] collects redraw clips, reconciles them against the back
// buffer's age, and presents each frame with the cheapest operation the
// [Backend] advertises in its [Features]:
//
//	win := offstage.NewStageWindow(backend, stage, offstage.LoadUserConfig())
//	win.Realize()
//
//	// Each frame:
//	win.AddRedrawClip(&dirty)
//	win.Redraw(func(clip *offstage.ClipRect) {
//		// paint, limited to clip when non-nil
//	})
//	win.ProcessCompletions()
//
// Everything runs on the render thread; the only asynchronous input is
// swap completion, which is queued and drained by
// [StageWindow.ProcessCompletions].
//
// # Testing
//
// [NullBackend] is a scriptable driver that allocates nothing and records
// everything, for exercising cache behavior, allocation failure paths,
// buffer ages, and presentation decisions headlessly.
//
// [Ebitengine]: https://ebitengine.org
// [gween]: https://github.com/tanema/gween
package offstage
