package inference

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	ort "github.com/yalue/onnxruntime_go"
)

// Fallback KV dimensions for models that export fully dynamic shapes.
const (
	fallbackNumHeads = 8
	fallbackHeadDim  = 256
)

// ortModel runs a decoder-only transformer exported to ONNX with explicit
// past_key_values inputs and present outputs. The KV tensors returned by one
// run are fed straight back in as the next run's past state, so each decode
// step costs one token of new context.
type ortModel struct {
	session *ort.DynamicAdvancedSession
	logger  *slog.Logger

	numLayers int
	numHeads  int
	headDim   int
	numOut    int // 1 logits output + 2 per layer
}

// ortCache holds the present.*.key/value tensors from the last run plus the
// sequence length they cover (including the one dummy seed position).
type ortCache struct {
	layers  []ort.Value
	pastLen int64
}

func (c *ortCache) Release() {
	for _, v := range c.layers {
		if v != nil {
			v.Destroy()
		}
	}
	c.layers = nil
}

func newORTModel(modelDir, libraryPath string, logger *slog.Logger) (*ortModel, error) {
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("initialize onnxruntime: %w", err)
	}

	modelPath := filepath.Join(modelDir, "model.onnx")

	numLayers, numHeads, headDim, err := discoverKVDims(modelPath)
	if err != nil {
		return nil, err
	}
	logger.Info("model loaded",
		"path", modelPath,
		"layers", numLayers,
		"heads", numHeads,
		"head_dim", headDim,
	)

	inputNames := []string{"input_ids", "attention_mask"}
	outputNames := []string{"logits"}
	for layer := 0; layer < numLayers; layer++ {
		inputNames = append(inputNames,
			fmt.Sprintf("past_key_values.%d.key", layer),
			fmt.Sprintf("past_key_values.%d.value", layer),
		)
		outputNames = append(outputNames,
			fmt.Sprintf("present.%d.key", layer),
			fmt.Sprintf("present.%d.value", layer),
		)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session options: %w", err)
	}
	defer opts.Destroy()
	if err := opts.SetIntraOpNumThreads(4); err != nil {
		return nil, fmt.Errorf("set intra-op threads: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, outputNames, opts)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &ortModel{
		session:   session,
		logger:    logger,
		numLayers: numLayers,
		numHeads:  numHeads,
		headDim:   headDim,
		numOut:    len(outputNames),
	}, nil
}

// discoverKVDims reads the model's input metadata to find how many KV layers
// it expects and their head geometry. Dynamic dimensions come back negative;
// those fall back to known defaults.
func discoverKVDims(modelPath string) (layers, heads, dim int, err error) {
	inputs, _, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("inspect model inputs: %w", err)
	}

	for _, in := range inputs {
		if !strings.Contains(in.Name, "past_key_values") || !strings.HasSuffix(in.Name, ".key") {
			continue
		}
		layers++
		// Expected shape: [batch, heads, seq, head_dim]
		if len(in.Dimensions) == 4 {
			if in.Dimensions[1] > 0 {
				heads = int(in.Dimensions[1])
			}
			if in.Dimensions[3] > 0 {
				dim = int(in.Dimensions[3])
			}
		}
	}

	if layers == 0 {
		return 0, 0, 0, fmt.Errorf("model %s has no past_key_values inputs; a KV-cache export is required", modelPath)
	}
	if heads == 0 {
		heads = fallbackNumHeads
	}
	if dim == 0 {
		dim = fallbackHeadDim
	}
	return layers, heads, dim, nil
}

// Prefill runs one forward pass over the whole prompt. The runtime rejects
// zero-length cache tensors, so the past state is seeded with a single
// zeroed position that the attention mask's leading 0 hides.
func (m *ortModel) Prefill(ids []int64) (StepOutput, error) {
	seqLen := int64(len(ids))

	inputIDs, err := ort.NewTensor(ort.NewShape(1, seqLen), ids)
	if err != nil {
		return StepOutput{}, fmt.Errorf("input_ids tensor: %w", err)
	}

	mask := make([]int64, seqLen+1)
	for i := int64(1); i <= seqLen; i++ {
		mask[i] = 1
	}
	maskT, err := ort.NewTensor(ort.NewShape(1, seqLen+1), mask)
	if err != nil {
		inputIDs.Destroy()
		return StepOutput{}, fmt.Errorf("attention_mask tensor: %w", err)
	}

	inputs := []ort.Value{inputIDs, maskT}
	for layer := 0; layer < m.numLayers; layer++ {
		k, kerr := m.emptyKV()
		if kerr != nil {
			destroyAll(inputs)
			return StepOutput{}, kerr
		}
		v, verr := m.emptyKV()
		if verr != nil {
			k.Destroy()
			destroyAll(inputs)
			return StepOutput{}, verr
		}
		inputs = append(inputs, k, v)
	}

	return m.run(inputs, seqLen+1)
}

// Step feeds one new token against the accumulated cache. It takes ownership
// of the cache: its tensors become run inputs and are destroyed afterwards.
func (m *ortModel) Step(token int64, cache Cache) (StepOutput, error) {
	c, ok := cache.(*ortCache)
	if !ok {
		return StepOutput{}, fmt.Errorf("unexpected cache type %T", cache)
	}

	inputIDs, err := ort.NewTensor(ort.NewShape(1, 1), []int64{token})
	if err != nil {
		c.Release()
		return StepOutput{}, fmt.Errorf("input_ids tensor: %w", err)
	}

	maskLen := c.pastLen + 1
	mask := make([]int64, maskLen)
	for i := range mask {
		mask[i] = 1
	}
	// Position 0 is the zeroed seed slot; keep it masked out.
	mask[0] = 0
	maskT, err := ort.NewTensor(ort.NewShape(1, maskLen), mask)
	if err != nil {
		inputIDs.Destroy()
		c.Release()
		return StepOutput{}, fmt.Errorf("attention_mask tensor: %w", err)
	}

	inputs := make([]ort.Value, 0, 2+len(c.layers))
	inputs = append(inputs, inputIDs, maskT)
	inputs = append(inputs, c.layers...)
	c.layers = nil // ownership moved into inputs

	return m.run(inputs, c.pastLen+1)
}

// run executes the session, destroys every input tensor, and packages the
// last-position logits plus the new cache. Output tensors other than logits
// live on inside the returned cache.
func (m *ortModel) run(inputs []ort.Value, newPastLen int64) (StepOutput, error) {
	outputs := make([]ort.Value, m.numOut)
	err := m.session.Run(inputs, outputs)
	destroyAll(inputs)
	if err != nil {
		destroyAll(outputs)
		return StepOutput{}, fmt.Errorf("forward pass: %w", err)
	}

	logitsT, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		destroyAll(outputs)
		return StepOutput{}, fmt.Errorf("logits output has unexpected type %T", outputs[0])
	}
	shape := logitsT.GetShape()
	if len(shape) != 3 {
		destroyAll(outputs)
		return StepOutput{}, fmt.Errorf("logits output has unexpected shape %v", shape)
	}
	seq, vocab := shape[1], shape[2]
	data := logitsT.GetData()
	last := make([]float32, vocab)
	copy(last, data[(seq-1)*vocab:])
	logitsT.Destroy()

	return StepOutput{
		Logits: last,
		Cache:  &ortCache{layers: outputs[1:], pastLen: newPastLen},
	}, nil
}

// emptyKV builds the single-position zero tensor used to seed the cache.
func (m *ortModel) emptyKV() (ort.Value, error) {
	data := make([]float32, m.numHeads*m.headDim)
	t, err := ort.NewTensor(ort.NewShape(1, int64(m.numHeads), 1, int64(m.headDim)), data)
	if err != nil {
		return nil, fmt.Errorf("seed kv tensor: %w", err)
	}
	return t, nil
}

func (m *ortModel) Close() error {
	m.session.Destroy()
	return ort.DestroyEnvironment()
}

func destroyAll(values []ort.Value) {
	for _, v := range values {
		if v != nil {
			v.Destroy()
		}
	}
}
